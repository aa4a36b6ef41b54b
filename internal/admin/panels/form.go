package panels

import (
	"maps"
	"net/url"
	"slices"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
)

// FormOptions collects what a panel tree needs from the generated form.
type FormOptions struct {
	Fields                []string
	Widgets               map[string]forms.Widget
	DeferRequiredOnFields []string
	Formsets              map[string]*FormsetOptions
}

// FormsetOptions configures the formset of one child relation.
type FormsetOptions struct {
	Fields      []string
	Widgets     map[string]forms.Widget
	MinNum      *int
	ValidateMin bool
	MaxNum      *int
	ValidateMax bool
	Formsets    map[string]*FormsetOptions
	// Form is the base form of each child. It is only set when the children
	// defer required fields, since those cannot be expressed per formset.
	Form *FormClass
}

func (o *FormOptions) merge(other FormOptions) {
	for _, name := range other.Fields {
		if !slices.Contains(o.Fields, name) {
			o.Fields = append(o.Fields, name)
		}
	}
	if len(other.Widgets) > 0 {
		if o.Widgets == nil {
			o.Widgets = map[string]forms.Widget{}
		}
		maps.Copy(o.Widgets, other.Widgets)
	}
	o.DeferRequiredOnFields = append(o.DeferRequiredOnFields, other.DeferRequiredOnFields...)
	if len(other.Formsets) > 0 {
		if o.Formsets == nil {
			o.Formsets = map[string]*FormsetOptions{}
		}
		maps.Copy(o.Formsets, other.Formsets)
	}
}

// FormClass builds forms for a model.
type FormClass struct {
	Model   *ModelMeta
	Options FormOptions
}

// GetFormForModel returns the form class for model restricted to the
// options. Nil Fields means all editable fields.
func GetFormForModel(model *ModelMeta, opts FormOptions) *FormClass {
	return &FormClass{Model: model, Options: opts}
}

func (c *FormClass) fieldNames() []string {
	if c.Options.Fields != nil {
		return c.Options.Fields
	}
	var names []string
	for _, f := range editableFields(c.Model, nil) {
		names = append(names, f.Name)
	}
	return names
}

func (c *FormClass) formField(meta *FieldMeta) *forms.Field {
	field := &forms.Field{
		Name:      meta.Name,
		Label:     meta.Label(),
		Kind:      meta.Kind,
		Required:  meta.Required,
		MaxLength: meta.MaxLength,
		Choices:   meta.Choices,
		HelpText:  meta.HelpText,
		Widget:    meta.Widget,
	}
	if w, ok := c.Options.Widgets[meta.Name]; ok {
		field.Widget = w
	}
	return field
}

// childClass returns the form class of the children of relation.
func (c *FormClass) childClass(rel *Relation, opts *FormsetOptions) *FormClass {
	childOpts := FormOptions{Fields: opts.Fields, Widgets: opts.Widgets, Formsets: opts.Formsets}
	if childOpts.Fields == nil {
		for _, f := range editableFields(rel.Model, []string{rel.ForeignKey}) {
			childOpts.Fields = append(childOpts.Fields, f.Name)
		}
	}
	if opts.Form != nil {
		childOpts.DeferRequiredOnFields = opts.Form.Options.DeferRequiredOnFields
	}
	return GetFormForModel(rel.Model, childOpts)
}

func formsetPrefix(formPrefix, relation string) string {
	if formPrefix == "" {
		return relation
	}
	return formPrefix + "-" + relation
}

// NewForm returns an unbound form for instance, including one formset per
// configured child relation.
func (c *FormClass) NewForm(prefix string, instance Instance) *forms.Form {
	form := forms.NewForm(prefix)
	for _, name := range c.fieldNames() {
		if meta := c.Model.Field(name); meta != nil {
			form.Fields = append(form.Fields, c.formField(meta))
		}
	}
	form.DeferRequiredOnFields = c.Options.DeferRequiredOnFields
	for key, value := range instance {
		if c.Model.Relation(key) == nil {
			form.Initial[key] = value
		}
	}

	if len(c.Options.Formsets) > 0 {
		form.Formsets = map[string]*forms.Formset{}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Options.Formsets)) {
		rel := c.Model.Relation(name)
		if rel == nil {
			continue
		}
		opts := c.Options.Formsets[name]
		child := c.childClass(rel, opts)

		var initial []map[string]any
		for _, ci := range instance.Children(name) {
			initial = append(initial, ci)
		}
		fsOpts := forms.FormsetOptions{
			MaxNum:      opts.MaxNum,
			ValidateMin: opts.ValidateMin,
			ValidateMax: opts.ValidateMax,
			CanDelete:   true,
			CanOrder:    rel.Model.Orderable,
		}
		if opts.MinNum != nil {
			fsOpts.MinNum = *opts.MinNum
		}
		form.Formsets[name] = forms.NewFormset(formsetPrefix(prefix, name), func(p string, init map[string]any) *forms.Form {
			return child.NewForm(p, init)
		}, initial, fsOpts)
	}
	return form
}

// Bind returns a form for instance bound to data.
func (c *FormClass) Bind(prefix string, instance Instance, data url.Values) (*forms.Form, error) {
	form := c.NewForm(prefix, instance)
	if err := form.Bind(data); err != nil {
		return form, err
	}
	return form, nil
}

// SortOrderField holds the position of orderable children.
const SortOrderField = "sort_order"

// Save applies the cleaned data of a valid form to a copy of instance.
// Children are replaced by the kept forms of each formset, in order.
func (c *FormClass) Save(form *forms.Form, instance Instance) Instance {
	out := Instance{}
	maps.Copy(out, instance)
	for key, value := range form.CleanedData() {
		if key == forms.DeletionField || key == forms.OrderingField {
			continue
		}
		out[key] = value
	}

	for name, fs := range form.Formsets {
		rel := c.Model.Relation(name)
		if rel == nil {
			continue
		}
		child := c.childClass(rel, c.Options.Formsets[name])
		existing := instance.Children(name)
		index := make(map[*forms.Form]int, len(fs.Forms))
		for i, f := range fs.Forms {
			index[f] = i
		}

		children := []Instance{}
		for pos, childForm := range fs.OrderedForms() {
			var base Instance
			if i := index[childForm]; i < len(existing) {
				base = existing[i]
			}
			saved := child.Save(childForm, base)
			if rel.Model.Orderable {
				saved[SortOrderField] = pos
			}
			children = append(children, saved)
		}
		out[name] = children
	}
	return out
}
