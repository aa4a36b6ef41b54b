package panels

import (
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
)

// Num returns a pointer to n, for the optional limits of an InlinePanel.
func Num(n int) *int { return &n }

// InlinePanel edits the children of a one-to-many relation as a formset.
type InlinePanel struct {
	base
	RelationName string
	// Panels edit each child. Nil derives them from the related model.
	Panels []Panel
	Label  string
	MinNum *int
	MaxNum *int

	relation         *Relation
	childEditHandler *PanelGroup
}

// NewInlinePanel returns an inline panel for relationName. The heading
// defaults to the label, or to the relation name written as words.
func NewInlinePanel(relationName string, panels []Panel, heading, label string, minNum, maxNum *int, opts ...Option) *InlinePanel {
	p := &InlinePanel{
		base:         newBase(opts),
		RelationName: relationName,
		Panels:       panels,
		Label:        label,
		MinNum:       minNum,
		MaxNum:       maxNum,
	}
	switch {
	case heading != "":
		p.heading = heading
	case label != "":
		p.heading = forms.Capfirst(label)
	default:
		p.heading = forms.Capfirst(strings.ReplaceAll(relationName, "_", " "))
	}
	return p
}

func (p *InlinePanel) BindToModel(model *ModelMeta) (Panel, error) {
	rel := model.Relation(p.RelationName)
	if rel == nil {
		return nil, fmt.Errorf("panels: %s has no relation %q", model.Name, p.RelationName)
	}
	clone := *p
	clone.model = model
	clone.relation = rel
	if clone.Label == "" {
		clone.Label = rel.Model.VerboseName
	}

	child, err := NewMultiFieldPanel(clone.PanelDefinitions(), WithHeading(clone.heading)).BindToModel(rel.Model)
	if err != nil {
		return nil, fmt.Errorf("panels: binding children of %s: %w", p.RelationName, err)
	}
	clone.childEditHandler = child.(*PanelGroup)
	return &clone, nil
}

// PanelDefinitions returns the declared child panels, or the panels of the
// related model without its foreign key.
func (p *InlinePanel) PanelDefinitions() []Panel {
	if p.Panels != nil {
		return p.Panels
	}
	return ExtractPanelDefinitions(p.relation.Model, []string{p.relation.ForeignKey})
}

// ChildEditHandler returns the panel editing one child.
func (p *InlinePanel) ChildEditHandler() *PanelGroup {
	return p.childEditHandler
}

func (p *InlinePanel) FormOptions() FormOptions {
	child := p.childEditHandler.FormOptions()
	opts := &FormsetOptions{
		Fields:      child.Fields,
		Widgets:     child.Widgets,
		MinNum:      p.MinNum,
		ValidateMin: p.MinNum != nil,
		MaxNum:      p.MaxNum,
		ValidateMax: p.MaxNum != nil,
		Formsets:    child.Formsets,
	}
	if len(child.DeferRequiredOnFields) > 0 {
		opts.Form = GetFormForModel(p.relation.Model, FormOptions{DeferRequiredOnFields: child.DeferRequiredOnFields})
	}
	return FormOptions{Formsets: map[string]*FormsetOptions{p.RelationName: opts}}
}

func (p *InlinePanel) Classes() []string {
	return append(p.base.Classes(), "w-panel--nested")
}

func (p *InlinePanel) BoundPanel(form *forms.Form, instance Instance, prefix string) BoundPanel {
	b := &BoundInlinePanel{panel: p, Label: p.Label, prefix: prefix}
	if form == nil {
		return b
	}
	b.Formset = form.Formsets[p.RelationName]
	if b.Formset == nil {
		return b
	}

	existing := instance.Children(p.RelationName)
	for i, sub := range b.Formset.Forms {
		hideControlFields(sub, b.Formset.Options.CanOrder, i+1)
		var childInstance Instance
		if i < len(existing) {
			childInstance = existing[i]
		}
		b.Children = append(b.Children, &InlineChild{
			Form:  sub,
			Panel: p.childEditHandler.BoundPanel(sub, childInstance, fmt.Sprintf("%s-%d", prefix, i)),
		})
	}

	// a valid formset may have been reordered, so respect that in case the
	// parent form errored and is rendered again
	if b.Formset.Options.CanOrder && b.Formset.IsValid() {
		sort.SliceStable(b.Children, func(i, j int) bool {
			return childOrder(b.Children[i]) < childOrder(b.Children[j])
		})
	}

	empty := b.Formset.EmptyForm()
	hideControlFields(empty, b.Formset.Options.CanOrder, 0)
	b.EmptyChild = &InlineChild{
		Form:  empty,
		Panel: p.childEditHandler.BoundPanel(empty, nil, prefix+"-"+forms.EmptyFormPrefix),
	}
	return b
}

// hideControlFields renders DELETE and ORDER as hidden inputs. An order of
// zero leaves the ORDER value unset.
func hideControlFields(form *forms.Form, canOrder bool, order int) {
	if f := form.Field(forms.DeletionField); f != nil {
		f.Widget = forms.HiddenInput(nil)
	}
	if !canOrder {
		return
	}
	if f := form.Field(forms.OrderingField); f != nil {
		var attrs forms.Attrs
		if order > 0 {
			attrs = forms.Attrs{"value": order}
		}
		f.Widget = forms.HiddenInput(attrs)
	}
}

func childOrder(c *InlineChild) int {
	if v, ok := c.Form.CleanedData()[forms.OrderingField].(int); ok && v != 0 {
		return v
	}
	return 1
}

// InlineChild is one child form of an inline panel.
type InlineChild struct {
	Form  *forms.Form
	Panel BoundPanel
}

func (c *InlineChild) controlFields() (template.HTML, error) {
	var b strings.Builder
	for _, name := range []string{forms.DeletionField, forms.OrderingField, "id"} {
		field := c.Form.BoundField(name)
		if field == nil {
			continue
		}
		html, err := field.Render(nil)
		if err != nil {
			return "", err
		}
		b.WriteString(string(html))
	}
	return template.HTML(b.String()), nil
}

type BoundInlinePanel struct {
	panel  *InlinePanel
	prefix string

	Label      string
	Formset    *forms.Formset
	Children   []*InlineChild
	EmptyChild *InlineChild
}

func (b *BoundInlinePanel) Prefix() string { return b.prefix }

type InlinePanelOptions struct {
	Type                 string `json:"type"`
	FormsetPrefix        string `json:"formsetPrefix"`
	EmptyChildFormPrefix string `json:"emptyChildFormPrefix"`
	CanOrder             bool   `json:"canOrder"`
	MaxForms             int    `json:"maxForms"`
	RelationName         string `json:"relationName"`
}

// JSOptions returns the options of the client side inline panel.
func (b *BoundInlinePanel) JSOptions() InlinePanelOptions {
	return InlinePanelOptions{
		Type:                 "InlinePanel",
		FormsetPrefix:        "id_" + b.Formset.Prefix,
		EmptyChildFormPrefix: b.EmptyChild.Form.Prefix,
		CanOrder:             b.Formset.Options.CanOrder,
		MaxForms:             b.Formset.MaxNum(),
		RelationName:         b.panel.RelationName,
	}
}

func (b *BoundInlinePanel) OptionsJSON() (string, error) {
	raw, err := json.Marshal(b.JSOptions())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type renderedChild struct {
	Prefix        string
	ControlFields template.HTML
	Panel         template.HTML
}

func (c *InlineChild) render() (renderedChild, error) {
	controls, err := c.controlFields()
	if err != nil {
		return renderedChild{}, err
	}
	panel, err := c.Panel.Render()
	if err != nil {
		return renderedChild{}, err
	}
	return renderedChild{Prefix: c.Panel.Prefix(), ControlFields: controls, Panel: panel}, nil
}

func (b *BoundInlinePanel) Render() (template.HTML, error) {
	if b.Formset == nil {
		return "", nil
	}
	children := make([]renderedChild, 0, len(b.Children))
	for _, child := range b.Children {
		rc, err := child.render()
		if err != nil {
			return "", err
		}
		children = append(children, rc)
	}
	empty, err := b.EmptyChild.render()
	if err != nil {
		return "", err
	}
	management, err := b.Formset.ManagementForm()
	if err != nil {
		return "", err
	}
	options, err := b.OptionsJSON()
	if err != nil {
		return "", err
	}
	return render("inline_panel", map[string]any{
		"Prefix":         b.prefix,
		"FormsetPrefix":  "id_" + b.Formset.Prefix,
		"Heading":        b.panel.Heading(),
		"HelpText":       b.panel.helpText,
		"Label":          b.Label,
		"Classes":        b.panel.Classes(),
		"ManagementForm": management,
		"NonFormErrors":  b.Formset.NonFormErrors(),
		"Children":       children,
		"EmptyChild":     empty,
		"OptionsJSON":    options,
	})
}
