package panels

import (
	"slices"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
)

// FieldMeta describes one editable attribute of a content model.
type FieldMeta struct {
	Name        string
	VerboseName string
	Kind        forms.FieldKind
	Required    bool
	// NotEditable fields are left out of generated forms.
	NotEditable bool
	MaxLength   int
	Choices     []forms.Choice
	HelpText    string
	Widget      forms.Widget
}

// Label returns the capitalised verbose name, falling back to the name.
func (f *FieldMeta) Label() string {
	if f.VerboseName != "" {
		return forms.Capfirst(f.VerboseName)
	}
	return forms.Capfirst(strings.ReplaceAll(f.Name, "_", " "))
}

// Relation is a one-to-many child relation. ForeignKey names the field of
// the related model pointing back at the parent.
type Relation struct {
	Name       string
	Model      *ModelMeta
	ForeignKey string
}

// ModelMeta describes a content model: its fields, its child relations and
// optionally the panels declared for editing it.
type ModelMeta struct {
	Name        string
	VerboseName string
	Fields      []*FieldMeta
	Relations   []*Relation
	Panels      []Panel
	// Orderable child models keep a sort order editable in inline panels.
	Orderable bool
	// DraftState models may be saved as drafts, so required fields are only
	// enforced on publish.
	DraftState bool
}

func (m *ModelMeta) Field(name string) *FieldMeta {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *ModelMeta) Relation(name string) *Relation {
	for _, r := range m.Relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Instance holds the values of a model object. Child relations hold
// []Instance.
type Instance map[string]any

// Children returns the related instances stored under relation.
func (i Instance) Children(relation string) []Instance {
	switch v := i[relation].(type) {
	case []Instance:
		return v
	case []map[string]any:
		out := make([]Instance, 0, len(v))
		for _, m := range v {
			out = append(out, m)
		}
		return out
	case []any:
		out := make([]Instance, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// ExtractPanelDefinitions returns the panels declared on model, or one
// FieldPanel per editable field not listed in exclude.
func ExtractPanelDefinitions(model *ModelMeta, exclude []string) []Panel {
	if model.Panels != nil {
		return model.Panels
	}
	var out []Panel
	for _, f := range editableFields(model, exclude) {
		out = append(out, NewFieldPanel(f.Name))
	}
	return out
}

func editableFields(model *ModelMeta, exclude []string) []*FieldMeta {
	var out []*FieldMeta
	for _, f := range model.Fields {
		if f.NotEditable || slices.Contains(exclude, f.Name) {
			continue
		}
		out = append(out, f)
	}
	return out
}
