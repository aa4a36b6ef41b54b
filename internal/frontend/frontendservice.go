package frontend

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/core"
	"github.com/labstack/echo/v4"
)

const messagesCookie = "cmsadmin_messages"

type FrontendService struct {
	coreService *core.CoreService
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{coreService: coreService}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = NewTemplate()

	e.GET("/probe", service.probeHandler)
	e.GET("/icon.svg", service.iconHandler)

	// public form pages
	e.GET("/forms/:id", service.formPageHandler)
	e.POST("/forms/:id", service.formPageHandler)

	admin := e.Group("/admin", service.basicAuth())
	admin.GET("", service.adminRedirectHandler)
	admin.GET("/pages", service.exploreHandler)
	admin.GET("/pages/:id", service.exploreHandler)
	admin.POST("/pages/:id/move", service.movePageHandler)
	admin.GET("/pages/:id/edit", service.editPageHandler)
	admin.POST("/pages/:id/edit", service.editPageHandler)
	admin.GET("/search", service.searchHandler)

	admin.GET("/images/multiple/add", service.addImagesFormHandler)
	admin.POST("/images/multiple/add", service.addImageHandler)
	admin.GET("/images/:id/thumbnail", service.thumbnailHandler)

	admin.GET("/forms", service.formsIndexHandler)
	admin.GET("/forms/submissions/:id", service.submissionsHandler)
	admin.GET("/forms/submissions/:id/delete", service.deleteSubmissionsHandler)
	admin.POST("/forms/submissions/:id/delete", service.deleteSubmissionsHandler)
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (service *FrontendService) adminRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, "/admin/pages")
}

// view carries what the shared layout renders on every page.
type view struct {
	Title    string
	Messages []string
}

func (service *FrontendService) newView(ctx echo.Context, title string) view {
	return view{Title: title, Messages: popMessages(ctx)}
}

// addMessage queues a message shown on the next rendered admin page.
func addMessage(ctx echo.Context, message string) {
	ctx.SetCookie(&http.Cookie{
		Name:     messagesCookie,
		Value:    url.QueryEscape(message),
		Path:     "/admin",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popMessages(ctx echo.Context) []string {
	cookie, err := ctx.Cookie(messagesCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ctx.SetCookie(&http.Cookie{Name: messagesCookie, Path: "/admin", MaxAge: -1})
	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	return []string{message}
}

// renderedField is a bound form field rendered for the "fields" template.
type renderedField struct {
	ID       string
	Label    string
	HelpText string
	HTML     template.HTML
	Errors   []string
	Required bool
	Hidden   bool
}

func renderFields(form *forms.Form) ([]renderedField, error) {
	var out []renderedField
	for _, bf := range form.BoundFields() {
		html, err := bf.Render(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, renderedField{
			ID:       bf.ID(),
			Label:    bf.Label(),
			HelpText: bf.Field.HelpText,
			HTML:     html,
			Errors:   bf.Errors(),
			Required: bf.Required(),
			Hidden:   bf.IsHidden(),
		})
	}
	return out, nil
}

func paramID(ctx echo.Context) (int64, error) {
	return strconv.ParseInt(ctx.Param("id"), 10, 64)
}

func parseIDs(values []string) []int64 {
	var ids []int64
	for _, v := range values {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// handleError maps service errors to responses: missing rows to 404,
// denied access to 403 and everything else to 500.
func (service *FrontendService) handleError(ctx echo.Context, handler string, err error) error {
	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, pages.ErrPermissionDenied):
		status, message = http.StatusForbidden, "Permission denied"
	case errors.Is(err, database.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	}
	if status == http.StatusInternalServerError {
		slog.Error(handler+": request failed", "status", status, "path", ctx.Request().URL.Path, "error", err)
	} else {
		slog.Warn(handler+": request rejected", "status", status, "path", ctx.Request().URL.Path, "error", err)
	}
	return ctx.String(status, message)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}
