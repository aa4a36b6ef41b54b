package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/admin/panels"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/richtext"
)

// EditPanelPrefix prefixes the DOM ids of the panels of the edit view.
const EditPanelPrefix = "panel"

// Editor loads pages into their edit forms and saves submitted changes.
type Editor struct {
	db        database.DatabaseService
	registry  *Registry
	converter *richtext.Converter
	config    Config
	now       func() time.Time
}

func NewEditor(db database.DatabaseService, registry *Registry, converter *richtext.Converter, cfg Config) *Editor {
	return &Editor{db: db, registry: registry, converter: converter, config: cfg, now: time.Now}
}

type EditRequest struct {
	User   *database.User
	PageID int64
	// Data is the submitted form; nil renders the unbound form.
	Data url.Values
	// Publish enforces every required field and makes the page live.
	Publish bool
}

type EditView struct {
	Page        *database.Page
	ContentType *ContentType
	Form        *forms.Form
	Panel       panels.BoundPanel
	Saved       bool
}

// Edit returns the edit view of a page. When data is submitted and valid
// the page is saved and the view is rebuilt from the stored values.
func (e *Editor) Edit(ctx context.Context, req EditRequest) (*EditView, error) {
	page, err := e.db.GetPage(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	perms, err := pages.LoadUserPagePermissions(ctx, e.db, req.User)
	if err != nil {
		return nil, err
	}
	if !perms.CanEdit(page) {
		return nil, pages.ErrPermissionDenied
	}
	ct, ok := e.registry.Get(page.ContentType)
	if !ok {
		return nil, fmt.Errorf("page %d has unknown content type %q", page.ID, page.ContentType)
	}

	instance, err := e.instance(ctx, page, ct)
	if err != nil {
		return nil, err
	}
	class := ct.EditHandler.GetFormClass()
	view := &EditView{Page: page, ContentType: ct}

	if req.Data == nil {
		view.Form = class.NewForm("", instance)
		view.Panel = ct.EditHandler.BoundPanel(view.Form, instance, EditPanelPrefix)
		return view, nil
	}

	// a broken management form leaves the formset invalid and is reported
	// on the re-rendered form
	form, err := class.Bind("", instance, req.Data)
	if err != nil && !errors.Is(err, forms.ErrInvalidManagementForm) {
		return nil, err
	}
	if !req.Publish {
		form.DeferRequiredFields()
	}
	if !form.IsValid() {
		view.Form = form
		view.Panel = ct.EditHandler.BoundPanel(form, instance, EditPanelPrefix)
		return view, nil
	}

	saved := class.Save(form, instance)
	if err := e.save(ctx, page, ct, saved, req.Publish); err != nil {
		return nil, err
	}
	slog.Info("page saved", "page_id", page.ID, "content_type", ct.Name, "publish", req.Publish)

	instance, err = e.instance(ctx, page, ct)
	if err != nil {
		return nil, err
	}
	view.Form = class.NewForm("", instance)
	view.Panel = ct.EditHandler.BoundPanel(view.Form, instance, EditPanelPrefix)
	view.Saved = true
	return view, nil
}

func (e *Editor) instance(ctx context.Context, page *database.Page, ct *ContentType) (panels.Instance, error) {
	title := page.Title
	if page.DraftTitle != "" {
		title = page.DraftTitle
	}
	instance := panels.Instance{
		"id":    page.ID,
		"title": title,
		"slug":  page.Slug,
		"body":  page.Content,
	}
	if !ct.IsForm {
		return instance, nil
	}
	fields, err := e.db.GetFormFields(ctx, page.ID)
	if err != nil {
		return nil, fmt.Errorf("loading form fields of page %d: %w", page.ID, err)
	}
	children := make([]panels.Instance, 0, len(fields))
	for _, f := range fields {
		children = append(children, panels.Instance{
			"id":            f.ID,
			"page":          page.ID,
			"label":         f.Label,
			"field_type":    f.FieldType,
			"required":      f.Required,
			"choices":       f.Choices,
			"default_value": f.DefaultValue,
			"help_text":     f.HelpText,
		})
	}
	instance[FormFieldsRelation] = children
	return instance, nil
}

func stringValue(instance panels.Instance, key string) string {
	s, _ := instance[key].(string)
	return s
}

func (e *Editor) save(ctx context.Context, page *database.Page, ct *ContentType, saved panels.Instance, publish bool) error {
	title := strings.TrimSpace(stringValue(saved, "title"))
	if title == "" {
		title = page.Title
	}
	slug := stringValue(saved, "slug")
	if slug == "" {
		slug = title
	}
	body, err := e.converter.Clean(stringValue(saved, "body"))
	if err != nil {
		return fmt.Errorf("cleaning body of page %d: %w", page.ID, err)
	}

	now := e.now().UTC()
	page.DraftTitle = title
	page.Slug = forms.Slugify(slug, e.config.AllowUnicodeSlugs)
	page.Content = body
	page.LatestRevisionCreatedAt = &now
	page.HasUnpublishedChanges = !publish
	if publish {
		page.Title = title
		page.Live = true
	}
	if err := e.db.UpdatePage(ctx, page); err != nil {
		return fmt.Errorf("saving page %d: %w", page.ID, err)
	}

	if !ct.IsForm {
		return nil
	}
	var fields []*database.FormField
	for _, child := range saved.Children(FormFieldsRelation) {
		label := strings.TrimSpace(stringValue(child, "label"))
		if label == "" {
			continue
		}
		required, _ := child["required"].(bool)
		fields = append(fields, &database.FormField{
			Label:        label,
			CleanName:    forms.GetFieldCleanName(label, false),
			FieldType:    stringValue(child, "field_type"),
			Required:     required,
			Choices:      stringValue(child, "choices"),
			DefaultValue: stringValue(child, "default_value"),
			HelpText:     stringValue(child, "help_text"),
		})
	}
	if err := e.db.SetFormFields(ctx, page.ID, fields); err != nil {
		return fmt.Errorf("saving form fields of page %d: %w", page.ID, err)
	}
	return nil
}
