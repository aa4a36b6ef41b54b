package frontend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jo-hoe/cmsadmin/internal/images"
	"github.com/labstack/echo/v4"
)

const thumbnailSpec = "max-165x165"

type addImagesView struct {
	view
	Accept     string
	Extensions string
	MaxSize    string
}

func (service *FrontendService) addImagesFormHandler(ctx echo.Context) error {
	renditions := service.coreService.Renditions()
	extensions := renditions.AllowedExtensions()
	accept := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		accept = append(accept, "."+ext)
	}
	v := addImagesView{
		view:       service.newView(ctx, "Add images"),
		Accept:     strings.Join(accept, ","),
		Extensions: strings.ToUpper(strings.Join(extensions, ", ")),
	}
	if size := renditions.MaxUploadSize(); size > 0 {
		v.MaxSize = humanize.Bytes(uint64(size))
	}
	return ctx.Render(http.StatusOK, "images_add.html", v)
}

type duplicateImage struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// uploadResponse answers each file posted by the multiple upload widget.
type uploadResponse struct {
	Success      bool             `json:"success"`
	ImageID      int64            `json:"image_id,omitempty"`
	Title        string           `json:"title,omitempty"`
	Duplicates   []duplicateImage `json:"duplicates,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func (service *FrontendService) addImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("files[]")
	if err != nil {
		slog.Error("addImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}

	renditions := service.coreService.Renditions()
	if err := renditions.ValidateUpload(file.Filename, file.Size); err != nil {
		return ctx.JSON(http.StatusOK, uploadResponse{ErrorMessage: err.Error()})
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("addImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("addImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("addImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	var uploadedBy *int64
	if user := currentUser(ctx); user != nil {
		uploadedBy = &user.ID
	}
	result, err := renditions.CreateImage(ctx.Request().Context(), ctx.FormValue("title"), file.Filename, data, uploadedBy)
	switch {
	case errors.Is(err, images.ErrInvalidExtension), errors.Is(err, images.ErrFileTooLarge), errors.Is(err, images.ErrInvalidImage):
		return ctx.JSON(http.StatusOK, uploadResponse{ErrorMessage: err.Error()})
	case err != nil:
		slog.Error("addImageHandler: failed to store uploaded image",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to store uploaded image")
	}

	resp := uploadResponse{Success: true, ImageID: result.Image.ID, Title: result.Image.Title}
	for _, dup := range result.Duplicates {
		resp.Duplicates = append(resp.Duplicates, duplicateImage{ID: dup.ID, Title: dup.Title})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (service *FrontendService) thumbnailHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	img, err := service.coreService.Database().GetImage(ctx.Request().Context(), id)
	if err != nil {
		return service.handleError(ctx, "thumbnailHandler", err)
	}
	rendition, err := service.coreService.Renditions().GetRendition(ctx.Request().Context(), img, thumbnailSpec)
	if err != nil {
		return service.handleError(ctx, "thumbnailHandler", err)
	}
	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return ctx.Blob(http.StatusOK, "image/"+rendition.Format, rendition.File)
}
