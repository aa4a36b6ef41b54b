package frontend

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/cmsadmin/internal/admin/content"
	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/labstack/echo/v4"
)

type exploreView struct {
	view
	Listing *pages.ListingContext
}

func (service *FrontendService) exploreHandler(ctx echo.Context) error {
	req := pages.ListingRequest{
		User:     currentUser(ctx),
		Ordering: ctx.QueryParam("ordering"),
		Page:     ctx.QueryParam("p"),
	}
	if ctx.Param("id") != "" {
		id, err := paramID(ctx)
		if err != nil {
			return ctx.String(http.StatusNotFound, "Not found")
		}
		req.ParentID = &id
	}

	listing, err := service.coreService.Listing().List(ctx.Request().Context(), req)
	if id, ok := pages.IsRedirect(err); ok {
		return ctx.Redirect(http.StatusFound, fmt.Sprintf("/admin/pages/%d", id))
	}
	if err != nil {
		return service.handleError(ctx, "exploreHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "explore.html", exploreView{
		view:    service.newView(ctx, listing.Title),
		Listing: listing,
	})
}

func (service *FrontendService) movePageHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	direction := pages.Direction(ctx.QueryParam("direction"))
	parent, err := pages.MovePage(ctx.Request().Context(), service.coreService.Database(), currentUser(ctx), id, direction)
	if errors.Is(err, pages.ErrInvalidDirection) {
		slog.Warn("movePageHandler: invalid direction", "status", http.StatusBadRequest, "page_id", id, "direction", direction)
		return ctx.String(http.StatusBadRequest, "Invalid direction")
	}
	if err != nil {
		return service.handleError(ctx, "movePageHandler", err)
	}
	return ctx.Redirect(http.StatusFound, fmt.Sprintf("/admin/pages/%d?ordering=%s", parent.ID, database.OrderingNative))
}

type editView struct {
	view
	Page    *database.Page
	Panel   template.HTML
	Invalid bool
}

func (service *FrontendService) editPageHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	req := content.EditRequest{User: currentUser(ctx), PageID: id}
	if ctx.Request().Method == http.MethodPost {
		params, err := ctx.FormParams()
		if err != nil {
			slog.Error("editPageHandler: failed to parse form", "status", http.StatusBadRequest, "error", err)
			return ctx.String(http.StatusBadRequest, "Failed to parse form")
		}
		req.Data = params
		req.Publish = params.Has("action-publish")
	}

	result, err := service.coreService.Editor().Edit(ctx.Request().Context(), req)
	if err != nil {
		return service.handleError(ctx, "editPageHandler", err)
	}
	if result.Saved {
		message := fmt.Sprintf("Page '%s' has been updated.", result.Page.AdminDisplayTitle())
		if req.Publish {
			message = fmt.Sprintf("Page '%s' has been published.", result.Page.Title)
		}
		addMessage(ctx, message)
		return ctx.Redirect(http.StatusFound, fmt.Sprintf("/admin/pages/%d/edit", id))
	}

	panel, err := result.Panel.Render()
	if err != nil {
		return service.handleError(ctx, "editPageHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "edit.html", editView{
		view:    service.newView(ctx, fmt.Sprintf("Editing %s %s", result.ContentType.Model.VerboseName, result.Page.AdminDisplayTitle())),
		Page:    result.Page,
		Panel:   panel,
		Invalid: result.Form.IsBound(),
	})
}

type searchView struct {
	view
	Query   string
	Fields  []renderedField
	Results []pages.SearchResult
}

func (service *FrontendService) searchHandler(ctx echo.Context) error {
	form := forms.NewSearchForm("Search pages")
	query := ctx.QueryParam("q")
	sv := searchView{view: service.newView(ctx, "Search")}
	if ctx.QueryParams().Has("q") {
		if err := form.Bind(ctx.QueryParams()); err != nil {
			return service.handleError(ctx, "searchHandler", err)
		}
		if form.IsValid() {
			sv.Query = query
			results, err := pages.Search(ctx.Request().Context(), service.coreService.Database(), currentUser(ctx), query)
			if err != nil {
				return service.handleError(ctx, "searchHandler", err)
			}
			sv.Results = results
		}
	}
	fields, err := renderFields(form)
	if err != nil {
		return service.handleError(ctx, "searchHandler", err)
	}
	sv.Fields = fields
	return ctx.Render(http.StatusOK, "search.html", sv)
}
