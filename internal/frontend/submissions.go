package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/admin/submissions"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/labstack/echo/v4"
)

type formsIndexView struct {
	view
	Pages     []*database.Page
	Paginator *pages.Paginator
}

func (service *FrontendService) formsIndexHandler(ctx echo.Context) error {
	formPages, paginator, err := service.coreService.Submissions().Index(ctx.Request().Context(), currentUser(ctx), ctx.QueryParam("p"))
	if err != nil {
		return service.handleError(ctx, "formsIndexHandler", err)
	}
	return ctx.Render(http.StatusOK, "forms_index.html", formsIndexView{
		view:      service.newView(ctx, "Forms"),
		Pages:     formPages,
		Paginator: paginator,
	})
}

type submissionsView struct {
	view
	List       *submissions.ListContext
	DateFields []renderedField
}

func (service *FrontendService) submissionsHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	req := submissions.ListRequest{User: currentUser(ctx), PageID: id, Query: ctx.QueryParams()}

	if ctx.QueryParam("action") == "CSV" {
		var buf bytes.Buffer
		if err := service.coreService.Submissions().WriteCSV(ctx.Request().Context(), req, &buf); err != nil {
			return service.handleError(ctx, "submissionsHandler", err)
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, submissions.CSVContentDisposition)
		return ctx.Blob(http.StatusOK, submissions.CSVContentType, buf.Bytes())
	}

	list, err := service.coreService.Submissions().List(ctx.Request().Context(), req)
	if err != nil {
		return service.handleError(ctx, "submissionsHandler", err)
	}
	dateFields, err := renderFields(list.SelectDateForm)
	if err != nil {
		return service.handleError(ctx, "submissionsHandler", err)
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "submissions.html", submissionsView{
		view:       service.newView(ctx, fmt.Sprintf("Form data %s", list.FormPage.AdminDisplayTitle())),
		List:       list,
		DateFields: dateFields,
	})
}

type confirmDeleteView struct {
	view
	Page        *database.Page
	Submissions []*database.FormSubmission
}

func (service *FrontendService) deleteSubmissionsHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	listURL := fmt.Sprintf("/admin/forms/submissions/%d", id)
	user := currentUser(ctx)

	if ctx.Request().Method == http.MethodPost {
		params, err := ctx.FormParams()
		if err != nil {
			slog.Error("deleteSubmissionsHandler: failed to parse form", "status", http.StatusBadRequest, "error", err)
			return ctx.String(http.StatusBadRequest, "Failed to parse form")
		}
		message, err := service.coreService.Submissions().DeleteSubmissions(ctx.Request().Context(), user, id, parseIDs(params["selected-submissions"]))
		if err != nil {
			return service.handleError(ctx, "deleteSubmissionsHandler", err)
		}
		addMessage(ctx, message)
		return ctx.Redirect(http.StatusFound, listURL)
	}

	page, selected, err := service.coreService.Submissions().SelectedSubmissions(ctx.Request().Context(), user, id, parseIDs(ctx.QueryParams()["selected-submissions"]))
	if err != nil {
		return service.handleError(ctx, "deleteSubmissionsHandler", err)
	}
	if len(selected) == 0 {
		return ctx.Redirect(http.StatusFound, listURL)
	}
	return ctx.Render(http.StatusOK, "confirm_delete.html", confirmDeleteView{
		view:        service.newView(ctx, fmt.Sprintf("Delete form data %s", page.AdminDisplayTitle())),
		Page:        page,
		Submissions: selected,
	})
}

type formPageView struct {
	view
	Page      *database.Page
	Intro     template.HTML
	Fields    []renderedField
	Submitted bool
}

// formPageHandler renders a live form page and stores its submissions.
func (service *FrontendService) formPageHandler(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return ctx.String(http.StatusNotFound, "Not found")
	}
	page, err := service.coreService.Database().GetPage(ctx.Request().Context(), id)
	if err != nil {
		return service.handleError(ctx, "formPageHandler", err)
	}
	ct, ok := service.coreService.Registry().Get(page.ContentType)
	if !ok || !ct.IsForm || !page.Live {
		return ctx.String(http.StatusNotFound, "Not found")
	}

	v := formPageView{
		view: view{Title: page.Title},
		Page: page,
		// stored page content has been through the rich text whitelister
		Intro: template.HTML(page.Content),
	}

	if ctx.Request().Method == http.MethodGet {
		fields, err := service.coreService.Database().GetFormFields(ctx.Request().Context(), page.ID)
		if err != nil {
			return service.handleError(ctx, "formPageHandler", err)
		}
		v.Fields, err = renderFields(submissions.BuildForm(fields))
		if err != nil {
			return service.handleError(ctx, "formPageHandler", err)
		}
		return ctx.Render(http.StatusOK, "form_page.html", v)
	}

	params, err := ctx.FormParams()
	if err != nil {
		slog.Error("formPageHandler: failed to parse form", "status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to parse form")
	}
	form, submission, err := service.coreService.Submissions().Submit(ctx.Request().Context(), page, params)
	if err != nil {
		return service.handleError(ctx, "formPageHandler", err)
	}
	if submission != nil {
		slog.Info("form submitted", "page_id", page.ID, "submission_id", submission.ID)
		v.Submitted = true
		return ctx.Render(http.StatusOK, "form_page.html", v)
	}
	v.Fields, err = renderFields(form)
	if err != nil {
		return service.handleError(ctx, "formPageHandler", err)
	}
	return ctx.Render(http.StatusOK, "form_page.html", v)
}
