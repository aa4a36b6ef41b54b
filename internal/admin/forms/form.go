package forms

import (
	"html/template"
	"maps"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NonFieldErrors is the Errors key of errors not tied to a single field.
const NonFieldErrors = "__all__"

// Form is an ordered set of fields bound to submitted data.
type Form struct {
	Prefix  string
	Fields  []*Field
	Initial map[string]any
	// EmptyPermitted forms that were left unchanged are valid without
	// running field validation.
	EmptyPermitted bool
	// DeferRequiredOnFields are treated as optional after
	// DeferRequiredFields has been called.
	DeferRequiredOnFields []string
	// Formsets are validated along with the form and keyed by relation name.
	Formsets map[string]*Formset
	// Clean runs after the fields have been cleaned. Errors added through
	// AddError invalidate the form.
	Clean func(f *Form)

	data          url.Values
	bound         bool
	deferRequired bool
	validated     bool
	errors        map[string][]string
	cleaned       map[string]any
}

func NewForm(prefix string, fields ...*Field) *Form {
	return &Form{Prefix: prefix, Fields: fields, Initial: map[string]any{}}
}

// AddPrefix returns the submitted name of the field.
func (f *Form) AddPrefix(name string) string {
	if f.Prefix == "" {
		return name
	}
	return f.Prefix + "-" + name
}

// Field returns the field called name, or nil.
func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// AddField appends field unless a field of the same name exists.
func (f *Form) AddField(field *Field) {
	if f.Field(field.Name) == nil {
		f.Fields = append(f.Fields, field)
	}
}

// Bind attaches submitted data to the form and its formsets.
func (f *Form) Bind(data url.Values) error {
	f.data = data
	f.bound = true
	f.validated = false
	for _, name := range slices.Sorted(maps.Keys(f.Formsets)) {
		if err := f.Formsets[name].Bind(data); err != nil {
			return err
		}
	}
	return nil
}

func (f *Form) IsBound() bool { return f.bound }

// Data returns the submitted data, nil for an unbound form.
func (f *Form) Data() url.Values { return f.data }

// DeferRequiredFields makes the fields listed in DeferRequiredOnFields
// optional, including in nested formsets.
func (f *Form) DeferRequiredFields() {
	f.deferRequired = true
	f.validated = false
	for _, fs := range f.Formsets {
		fs.DeferRequiredFields()
	}
}

// RestoreRequiredFields undoes DeferRequiredFields.
func (f *Form) RestoreRequiredFields() {
	f.deferRequired = false
	f.validated = false
	for _, fs := range f.Formsets {
		fs.RestoreRequiredFields()
	}
}

func (f *Form) isRequired(field *Field) bool {
	if f.deferRequired && slices.Contains(f.DeferRequiredOnFields, field.Name) {
		return false
	}
	return field.Required
}

func (f *Form) rawValue(field *Field) string {
	return field.widget().ValueFromData(f.data, f.AddPrefix(field.Name))
}

func (f *Form) initialValue(field *Field) string {
	if v, ok := f.Initial[field.Name]; ok {
		return field.FormatValue(v)
	}
	return field.Initial
}

// HasChanged reports whether any submitted value differs from its initial
// value.
func (f *Form) HasChanged() bool {
	if !f.bound {
		return false
	}
	for _, field := range f.Fields {
		raw, initial := f.rawValue(field), f.initialValue(field)
		if field.Kind == BooleanField {
			if isTruthy(raw) != isTruthy(initial) {
				return true
			}
			continue
		}
		if strings.TrimSpace(raw) != strings.TrimSpace(initial) {
			return true
		}
	}
	return false
}

func (f *Form) fullClean() {
	if f.validated {
		return
	}
	f.validated = true
	f.errors = map[string][]string{}
	f.cleaned = map[string]any{}
	if !f.bound {
		return
	}
	if f.EmptyPermitted && !f.HasChanged() {
		return
	}
	for _, field := range f.Fields {
		value, err := field.Clean(f.rawValue(field), f.isRequired(field))
		if err != nil {
			f.errors[field.Name] = append(f.errors[field.Name], err.Error())
			continue
		}
		f.cleaned[field.Name] = value
	}
	if f.Clean != nil {
		f.Clean(f)
	}
}

// AddError records an error for field, or a non-field error when field is
// empty, and removes the field from the cleaned data.
func (f *Form) AddError(field, message string) {
	if f.errors == nil {
		f.errors = map[string][]string{}
	}
	if field == "" {
		field = NonFieldErrors
	}
	f.errors[field] = append(f.errors[field], message)
	delete(f.cleaned, field)
}

// IsValid reports whether the form is bound and it and all its formsets
// validate.
func (f *Form) IsValid() bool {
	if !f.bound {
		return false
	}
	f.fullClean()
	valid := len(f.errors) == 0
	for _, fs := range f.Formsets {
		if !fs.IsValid() {
			valid = false
		}
	}
	return valid
}

// Errors returns the validation errors keyed by field name.
func (f *Form) Errors() map[string][]string {
	f.fullClean()
	return f.errors
}

// CleanedData returns the typed values of the fields that validated.
func (f *Form) CleanedData() map[string]any {
	f.fullClean()
	return f.cleaned
}

// BoundFields returns the fields of the form in declaration order.
func (f *Form) BoundFields() []*BoundField {
	out := make([]*BoundField, 0, len(f.Fields))
	for _, field := range f.Fields {
		out = append(out, &BoundField{Form: f, Field: field})
	}
	return out
}

// BoundField returns the named field bound to the form, or nil.
func (f *Form) BoundField(name string) *BoundField {
	field := f.Field(name)
	if field == nil {
		return nil
	}
	return &BoundField{Form: f, Field: field}
}

// BoundField is a field together with the form data it renders.
type BoundField struct {
	Form  *Form
	Field *Field
}

func (b *BoundField) Name() string { return b.Field.Name }

func (b *BoundField) HTMLName() string { return b.Form.AddPrefix(b.Field.Name) }

func (b *BoundField) ID() string { return "id_" + b.HTMLName() }

// Label returns the field label, derived from the name when unset.
func (b *BoundField) Label() string {
	if b.Field.Label != "" {
		return b.Field.Label
	}
	return Capfirst(strings.ReplaceAll(b.Field.Name, "_", " "))
}

// Value returns the submitted value of a bound form or the initial value.
func (b *BoundField) Value() string {
	if b.Form.bound {
		return b.Form.rawValue(b.Field)
	}
	return b.Form.initialValue(b.Field)
}

func (b *BoundField) Errors() []string {
	return b.Form.Errors()[b.Field.Name]
}

func (b *BoundField) IsHidden() bool { return b.Field.widget().IsHidden() }

func (b *BoundField) Required() bool { return b.Form.isRequired(b.Field) }

// Render renders the field widget with the field id and any extra attrs.
func (b *BoundField) Render(attrs Attrs) (template.HTML, error) {
	base := Attrs{"id": b.ID()}
	if b.Required() && b.Field.Kind != BooleanField {
		base["required"] = true
	}
	if b.Field.MaxLength > 0 {
		base["maxlength"] = b.Field.MaxLength
	}
	if len(b.Errors()) > 0 {
		base["aria-invalid"] = "true"
	}
	return b.Field.widget().Render(b.HTMLName(), b.Value(), base.Merge(attrs))
}

// Capfirst upper-cases the first letter of s.
func Capfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
