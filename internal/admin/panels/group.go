package panels

import (
	"html/template"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
)

// PanelGroup renders a list of child panels, either as a titled section
// (MultiFieldPanel) or as the top level list of an edit view (ObjectList).
type PanelGroup struct {
	base
	Children []Panel

	extraClasses []string
}

func NewMultiFieldPanel(children []Panel, opts ...Option) *PanelGroup {
	return &PanelGroup{base: newBase(opts), Children: children, extraClasses: []string{"w-panel--multi-field"}}
}

func NewObjectList(children []Panel, opts ...Option) *PanelGroup {
	return &PanelGroup{base: newBase(opts), Children: children}
}

func (p *PanelGroup) BindToModel(model *ModelMeta) (Panel, error) {
	clone := *p
	clone.model = model
	clone.Children = make([]Panel, 0, len(p.Children))
	for _, child := range p.Children {
		bound, err := child.BindToModel(model)
		if err != nil {
			return nil, err
		}
		clone.Children = append(clone.Children, bound)
	}
	return &clone, nil
}

func (p *PanelGroup) FormOptions() FormOptions {
	var opts FormOptions
	for _, child := range p.Children {
		opts.merge(child.FormOptions())
	}
	return opts
}

func (p *PanelGroup) Classes() []string {
	return append(p.base.Classes(), p.extraClasses...)
}

func (p *PanelGroup) BoundPanel(form *forms.Form, instance Instance, prefix string) BoundPanel {
	b := &BoundPanelGroup{panel: p, prefix: prefix}
	for _, child := range p.Children {
		b.Children = append(b.Children, child.BoundPanel(form, instance, prefix+"-child-"+cleanName(child)))
	}
	return b
}

// GetFormClass returns the form class that edits the fields of the group.
// The group must be bound to a model.
func (p *PanelGroup) GetFormClass() *FormClass {
	return GetFormForModel(p.model, p.FormOptions())
}

type BoundPanelGroup struct {
	panel    *PanelGroup
	prefix   string
	Children []BoundPanel
}

func (b *BoundPanelGroup) Prefix() string { return b.prefix }

func (b *BoundPanelGroup) Render() (template.HTML, error) {
	children := make([]template.HTML, 0, len(b.Children))
	for _, child := range b.Children {
		html, err := child.Render()
		if err != nil {
			return "", err
		}
		children = append(children, html)
	}
	return render("panel_group", map[string]any{
		"Prefix":   b.prefix,
		"Heading":  b.panel.Heading(),
		"HelpText": b.panel.helpText,
		"Classes":  b.panel.Classes(),
		"Children": children,
	})
}
