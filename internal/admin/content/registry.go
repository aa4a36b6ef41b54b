package content

import (
	"fmt"
	"slices"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/admin/panels"
	"github.com/jo-hoe/cmsadmin/internal/admin/submissions"
)

// Content types shipped with the admin.
const (
	PageType     = "page"
	HomePageType = "homepage"
	FormPageType = "formpage"
)

// FormFieldsRelation is the child relation holding the fields of form pages.
const FormFieldsRelation = "form_fields"

// ContentType pairs a page model with the edit handler used to edit it.
type ContentType struct {
	Name        string
	Model       *panels.ModelMeta
	EditHandler *panels.PanelGroup
	// IsForm pages collect submissions through their form fields.
	IsForm bool
}

// Registry maps the content type names stored on pages to their models.
type Registry struct {
	types map[string]*ContentType
	names []string
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]*ContentType{}}
}

// Register binds the edit handler of model and adds it under name. Models
// without declared panels are edited through all their editable fields.
func (r *Registry) Register(name string, model *panels.ModelMeta, isForm bool) error {
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("content type %q registered twice", name)
	}
	definitions := model.Panels
	if len(definitions) == 0 {
		definitions = panels.ExtractPanelDefinitions(model, nil)
	}
	bound, err := panels.NewObjectList(definitions).BindToModel(model)
	if err != nil {
		return fmt.Errorf("binding edit handler of %q: %w", name, err)
	}
	r.types[name] = &ContentType{Name: name, Model: model, EditHandler: bound.(*panels.PanelGroup), IsForm: isForm}
	r.names = append(r.names, name)
	return nil
}

func (r *Registry) Get(name string) (*ContentType, bool) {
	ct, ok := r.types[name]
	return ct, ok
}

// Names returns the registered content types in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// FormTypes returns the content types that collect submissions.
func (r *Registry) FormTypes() []string {
	var out []string
	for _, name := range r.names {
		if r.types[name].IsForm {
			out = append(out, name)
		}
	}
	return out
}

type Config struct {
	AllowUnicodeSlugs bool
}

func pageFields() []*panels.FieldMeta {
	return []*panels.FieldMeta{
		{Name: "id", Kind: forms.IntegerField, NotEditable: true},
		{Name: "title", Kind: forms.CharField, Required: true, MaxLength: 255, HelpText: "The page title as you'd like it to be seen by the public"},
		{Name: "slug", Kind: forms.CharField, Required: true, MaxLength: 255, HelpText: "The name of the page as it will appear in URLs"},
		{Name: "body", Kind: forms.TextField},
	}
}

func slugPanel(cfg Config) *panels.FieldPanel {
	p := panels.NewFieldPanel("slug")
	p.Widget = forms.SlugInput(nil, "", nil, cfg.AllowUnicodeSlugs)
	return p
}

// FormFieldModel describes one field of a form page.
func FormFieldModel() *panels.ModelMeta {
	return &panels.ModelMeta{
		Name:        "FormField",
		VerboseName: "form field",
		Orderable:   true,
		Fields: []*panels.FieldMeta{
			{Name: "id", Kind: forms.IntegerField, NotEditable: true},
			{Name: "page", Kind: forms.HiddenField},
			{Name: "label", Kind: forms.CharField, Required: true, MaxLength: 255, HelpText: "The label of the form field"},
			{Name: "field_type", VerboseName: "field type", Kind: forms.ChoiceField, Required: true, Choices: submissions.FieldTypes},
			{Name: "required", Kind: forms.BooleanField},
			{Name: "choices", Kind: forms.TextField, HelpText: "Comma or new line separated list of choices. Only applicable in checkboxes, radio and dropdown."},
			{Name: "default_value", VerboseName: "default value", Kind: forms.CharField, MaxLength: 255},
			{Name: "help_text", VerboseName: "help text", Kind: forms.CharField, MaxLength: 255},
		},
	}
}

// DefaultRegistry registers the plain page, the home page and the form page.
func DefaultRegistry(cfg Config) (*Registry, error) {
	r := NewRegistry()

	page := &panels.ModelMeta{
		Name:        "Page",
		VerboseName: "page",
		DraftState:  true,
		Fields:      pageFields(),
		Panels: []panels.Panel{
			panels.NewFieldPanel("title"),
			slugPanel(cfg),
			panels.NewFieldPanel("body"),
		},
	}
	home := &panels.ModelMeta{
		Name:        "HomePage",
		VerboseName: "home page",
		DraftState:  true,
		Fields:      pageFields(),
		Panels: []panels.Panel{
			panels.NewMultiFieldPanel([]panels.Panel{panels.NewFieldPanel("title"), slugPanel(cfg)}, panels.WithHeading("Title")),
			panels.NewFieldPanel("body", panels.WithHeading("Introduction")),
		},
	}
	formFields := FormFieldModel()
	formPage := &panels.ModelMeta{
		Name:        "FormPage",
		VerboseName: "form page",
		DraftState:  true,
		Fields:      pageFields(),
		Relations:   []*panels.Relation{{Name: FormFieldsRelation, Model: formFields, ForeignKey: "page"}},
		Panels: []panels.Panel{
			panels.NewFieldPanel("title"),
			slugPanel(cfg),
			panels.NewFieldPanel("body", panels.WithHeading("Intro")),
			panels.NewInlinePanel(FormFieldsRelation, nil, "Form fields", "", nil, nil),
		},
	}

	for _, ct := range []struct {
		name   string
		model  *panels.ModelMeta
		isForm bool
	}{
		{PageType, page, false},
		{HomePageType, home, false},
		{FormPageType, formPage, true},
	} {
		if err := r.Register(ct.name, ct.model, ct.isForm); err != nil {
			return nil, err
		}
	}
	return r, nil
}
