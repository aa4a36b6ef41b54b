package backend

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/cmsadmin/internal/core"
	"github.com/jo-hoe/cmsadmin/internal/embeds"
	"github.com/labstack/echo/v4"
)

// APIService serves the JSON endpoints used by the rich text editor.
type APIService struct {
	coreService *core.CoreService
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{coreService: coreService}
}

// EmbedRequest is the query of GET /api/embeds.
type EmbedRequest struct {
	URL      string `query:"url" validate:"required,url"`
	MaxWidth int    `query:"maxwidth" validate:"min=0"`
}

// CleanRequest is the body of POST /api/richtext/clean.
type CleanRequest struct {
	HTML string `json:"html" validate:"max=1048576"`
}

type CleanResponse struct {
	HTML string `json:"html"`
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/embeds", s.embedHandler)
	api.POST("/richtext/clean", s.cleanHandler)
}

func (s *APIService) embedHandler(ctx echo.Context) error {
	var req EmbedRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	if req.MaxWidth == 0 {
		req.MaxWidth = s.coreService.Config().Embeds.MaxWidth
	}

	embed, err := s.coreService.Finder().FindEmbed(ctx.Request().Context(), req.URL, req.MaxWidth)
	if errors.Is(err, embeds.ErrEmbedNotFound) {
		slog.Warn("embedHandler: no embed found", "status", http.StatusNotFound, "url", req.URL, "error", err)
		return ctx.String(http.StatusNotFound, "No embed found for this URL")
	}
	if err != nil {
		slog.Error("embedHandler: embed lookup failed", "status", http.StatusBadGateway, "url", req.URL, "error", err)
		return ctx.String(http.StatusBadGateway, "Embed provider request failed")
	}
	return ctx.JSON(http.StatusOK, embed)
}

func (s *APIService) cleanHandler(ctx echo.Context) error {
	var req CleanRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	cleaned, err := s.coreService.Converter().Clean(req.HTML)
	if err != nil {
		slog.Error("cleanHandler: failed to clean rich text", "status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to parse rich text")
	}
	return ctx.JSON(http.StatusOK, CleanResponse{HTML: cleaned})
}
