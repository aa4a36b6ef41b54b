package panels

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
)

//go:embed templates/*.html
var templateFS embed.FS

var panelTemplates = template.Must(template.New("panels").ParseFS(templateFS, "templates/*.html"))

func render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := panelTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Panel describes how part of a model is edited. Panels are declared
// unbound and bound to a model before use.
type Panel interface {
	// BindToModel returns a copy of the panel attached to model.
	BindToModel(model *ModelMeta) (Panel, error)
	// FormOptions returns what the panel needs from the generated form.
	FormOptions() FormOptions
	// BoundPanel attaches the panel to a form and its instance for
	// rendering. prefix identifies the panel in the page.
	BoundPanel(form *forms.Form, instance Instance, prefix string) BoundPanel
	Heading() string
	Classes() []string
}

// BoundPanel is a panel ready to render.
type BoundPanel interface {
	Prefix() string
	Render() (template.HTML, error)
}

type base struct {
	heading   string
	classname string
	helpText  string
	model     *ModelMeta
}

type Option func(*base)

func WithHeading(heading string) Option {
	return func(b *base) { b.heading = heading }
}

// WithClassname adds space separated CSS classes to the panel.
func WithClassname(classname string) Option {
	return func(b *base) { b.classname = classname }
}

func WithHelpText(text string) Option {
	return func(b *base) { b.helpText = text }
}

func newBase(opts []Option) base {
	var b base
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Heading() string { return b.heading }

func (b *base) Classes() []string { return strings.Fields(b.classname) }

// Model returns the model the panel is bound to, or nil.
func (b *base) Model() *ModelMeta { return b.model }

// cleanName identifies a panel among its siblings.
func cleanName(p Panel) string {
	switch p := p.(type) {
	case *FieldPanel:
		return p.FieldName
	case *InlinePanel:
		return p.RelationName
	}
	return forms.SafeSnakeCase(p.Heading())
}

// FieldPanel edits a single field of the model.
type FieldPanel struct {
	base
	FieldName string
	// Widget overrides the widget of the field.
	Widget forms.Widget

	field *FieldMeta
}

func NewFieldPanel(fieldName string, opts ...Option) *FieldPanel {
	return &FieldPanel{base: newBase(opts), FieldName: fieldName}
}

func (p *FieldPanel) BindToModel(model *ModelMeta) (Panel, error) {
	field := model.Field(p.FieldName)
	if field == nil {
		return nil, fmt.Errorf("panels: %s has no field %q", model.Name, p.FieldName)
	}
	clone := *p
	clone.model = model
	clone.field = field
	if clone.heading == "" {
		clone.heading = field.Label()
	}
	if clone.helpText == "" {
		clone.helpText = field.HelpText
	}
	return &clone, nil
}

func (p *FieldPanel) FormOptions() FormOptions {
	opts := FormOptions{Fields: []string{p.FieldName}}
	if p.Widget != nil {
		opts.Widgets = map[string]forms.Widget{p.FieldName: p.Widget}
	}
	if p.model != nil && p.model.DraftState && p.field != nil && p.field.Required {
		opts.DeferRequiredOnFields = []string{p.FieldName}
	}
	return opts
}

func (p *FieldPanel) BoundPanel(form *forms.Form, instance Instance, prefix string) BoundPanel {
	return &BoundFieldPanel{panel: p, form: form, prefix: prefix}
}

type BoundFieldPanel struct {
	panel  *FieldPanel
	form   *forms.Form
	prefix string
}

func (b *BoundFieldPanel) Prefix() string { return b.prefix }

// BoundField returns the form field edited by the panel, or nil when the
// form lacks it.
func (b *BoundFieldPanel) BoundField() *forms.BoundField {
	if b.form == nil {
		return nil
	}
	return b.form.BoundField(b.panel.FieldName)
}

func (b *BoundFieldPanel) Render() (template.HTML, error) {
	field := b.BoundField()
	if field == nil {
		return "", nil
	}
	widget, err := field.Render(nil)
	if err != nil {
		return "", err
	}
	return render("field_panel", map[string]any{
		"Prefix":   b.prefix,
		"Name":     field.Name(),
		"ID":       field.ID(),
		"Heading":  b.panel.Heading(),
		"HelpText": b.panel.helpText,
		"Classes":  b.panel.Classes(),
		"Required": field.Required(),
		"Hidden":   field.IsHidden(),
		"Errors":   field.Errors(),
		"Widget":   widget,
	})
}
