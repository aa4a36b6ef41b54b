package forms

import (
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	TotalFormCount   = "TOTAL_FORMS"
	InitialFormCount = "INITIAL_FORMS"
	MinNumFormCount  = "MIN_NUM_FORMS"
	MaxNumFormCount  = "MAX_NUM_FORMS"
	DeletionField    = "DELETE"
	OrderingField    = "ORDER"

	// DefaultMaxNum caps the number of forms of a formset without MaxNum.
	DefaultMaxNum = 1000
	// EmptyFormPrefix stands in for the index in the empty form template.
	EmptyFormPrefix = "__prefix__"
)

var ErrInvalidManagementForm = errors.New("ManagementForm data is missing or has been tampered with")

// FormFactory returns a new unbound form holding the fields of one child,
// using prefix for its own fields and any formsets nested inside it.
type FormFactory func(prefix string, initial map[string]any) *Form

type FormsetOptions struct {
	MinNum      int
	// MaxNum caps the number of forms; nil means DefaultMaxNum and zero
	// allows no forms at all.
	MaxNum      *int
	ValidateMin bool
	ValidateMax bool
	CanDelete   bool
	CanOrder    bool
	Extra       int
}

// Formset is a list of forms of the same kind submitted together, each
// prefixed with "<prefix>-<index>".
type Formset struct {
	Prefix  string
	Options FormsetOptions
	Initial []map[string]any
	Forms   []*Form

	factory       FormFactory
	data          url.Values
	bound         bool
	deferRequired bool
	nonFormErrors []string
	managementErr error
	maxNum        int
}

func NewFormset(prefix string, factory FormFactory, initial []map[string]any, opts FormsetOptions) *Formset {
	fs := &Formset{Prefix: prefix, Options: opts, Initial: initial, factory: factory, maxNum: DefaultMaxNum}
	if opts.MaxNum != nil {
		fs.maxNum = max(*opts.MaxNum, 0)
	}
	fs.Forms = fs.buildForms(fs.unboundTotal())
	return fs
}

// MaxNum is the effective upper bound on the number of forms.
func (fs *Formset) MaxNum() int { return fs.maxNum }

func (fs *Formset) absoluteMax() int {
	return fs.maxNum + DefaultMaxNum
}

func (fs *Formset) unboundTotal() int {
	total := max(len(fs.Initial)+fs.Options.Extra, fs.Options.MinNum)
	if len(fs.Initial) > fs.maxNum {
		return len(fs.Initial)
	}
	return min(total, fs.maxNum)
}

func (fs *Formset) addPrefix(index string) string {
	return fs.Prefix + "-" + index
}

func (fs *Formset) newForm(prefix string, index int, initial map[string]any) *Form {
	form := fs.factory(prefix, initial)
	form.Prefix = prefix
	if fs.Options.CanOrder {
		order := &Field{Name: OrderingField, Label: "Order", Kind: IntegerField, Widget: NumberInput(nil)}
		if index >= 0 && index < len(fs.Initial) {
			order.Initial = strconv.Itoa(index + 1)
		}
		form.AddField(order)
	}
	if fs.Options.CanDelete {
		form.AddField(&Field{Name: DeletionField, Label: "Delete", Kind: BooleanField})
	}
	if fs.deferRequired {
		form.DeferRequiredFields()
	}
	return form
}

func (fs *Formset) buildForms(total int) []*Form {
	forms := make([]*Form, 0, total)
	for i := range total {
		var initial map[string]any
		if i < len(fs.Initial) {
			initial = fs.Initial[i]
		}
		form := fs.newForm(fs.addPrefix(strconv.Itoa(i)), i, initial)
		form.EmptyPermitted = i >= fs.initialFormCount() && i >= fs.Options.MinNum
		forms = append(forms, form)
	}
	return forms
}

func (fs *Formset) initialFormCount() int {
	if fs.bound && fs.managementErr == nil {
		n, _ := strconv.Atoi(fs.data.Get(fs.addPrefix(InitialFormCount)))
		return n
	}
	return len(fs.Initial)
}

// Bind attaches submitted data. The forms are rebuilt from the submitted
// management form; ErrInvalidManagementForm is returned when it is missing
// or malformed.
func (fs *Formset) Bind(data url.Values) error {
	fs.data = data
	fs.bound = true
	fs.nonFormErrors = nil
	fs.managementErr = nil

	total, err := strconv.Atoi(data.Get(fs.addPrefix(TotalFormCount)))
	if err != nil || total < 0 {
		fs.managementErr = ErrInvalidManagementForm
	}
	initial, err := strconv.Atoi(data.Get(fs.addPrefix(InitialFormCount)))
	if err != nil || initial < 0 {
		fs.managementErr = ErrInvalidManagementForm
	}
	if fs.managementErr != nil {
		fs.nonFormErrors = append(fs.nonFormErrors, fs.managementErr.Error())
		fs.Forms = nil
		return fmt.Errorf("formset %q: %w", fs.Prefix, fs.managementErr)
	}

	fs.Forms = fs.buildForms(min(total, fs.absoluteMax()))
	for _, form := range fs.Forms {
		if err := form.Bind(data); err != nil {
			return err
		}
	}
	return nil
}

func (fs *Formset) IsBound() bool { return fs.bound }

func (fs *Formset) DeferRequiredFields() {
	fs.deferRequired = true
	for _, form := range fs.Forms {
		form.DeferRequiredFields()
	}
}

func (fs *Formset) RestoreRequiredFields() {
	fs.deferRequired = false
	for _, form := range fs.Forms {
		form.RestoreRequiredFields()
	}
}

// ShouldDelete reports whether the form was marked for deletion.
func (fs *Formset) ShouldDelete(form *Form) bool {
	if !fs.Options.CanDelete || !form.bound {
		return false
	}
	field := form.Field(DeletionField)
	return field != nil && isTruthy(form.rawValue(field))
}

// DeletedForms returns the forms marked for deletion.
func (fs *Formset) DeletedForms() []*Form {
	var out []*Form
	for _, form := range fs.Forms {
		if fs.ShouldDelete(form) {
			out = append(out, form)
		}
	}
	return out
}

// OrderedForms returns the valid forms that are kept, sorted by their
// ORDER value. Forms without an order go last.
func (fs *Formset) OrderedForms() []*Form {
	type ordered struct {
		form  *Form
		order int
		set   bool
	}
	var items []ordered
	for i, form := range fs.Forms {
		if fs.ShouldDelete(form) || (form.EmptyPermitted && !form.HasChanged()) {
			continue
		}
		item := ordered{form: form, order: i}
		if v, ok := form.CleanedData()[OrderingField].(int); ok {
			item.order, item.set = v, true
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].set != items[j].set {
			return items[i].set
		}
		return items[i].set && items[i].order < items[j].order
	})
	out := make([]*Form, 0, len(items))
	for _, item := range items {
		out = append(out, item.form)
	}
	return out
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

// IsValid validates every kept form and the form count limits.
func (fs *Formset) IsValid() bool {
	if !fs.bound {
		return false
	}
	if fs.managementErr != nil {
		return false
	}
	valid := true
	deleted, empty := 0, 0
	for i, form := range fs.Forms {
		if fs.ShouldDelete(form) {
			deleted++
			continue
		}
		if i >= fs.initialFormCount() && !form.HasChanged() {
			empty++
		}
		if !form.IsValid() {
			valid = false
		}
	}

	fs.nonFormErrors = nil
	kept := len(fs.Forms) - deleted
	if fs.Options.ValidateMax && kept > fs.maxNum {
		fs.nonFormErrors = append(fs.nonFormErrors,
			fmt.Sprintf("Please submit at most %d %s.", fs.maxNum, plural(fs.maxNum, "form", "forms")))
	}
	if fs.Options.ValidateMin && kept-empty < fs.Options.MinNum {
		fs.nonFormErrors = append(fs.nonFormErrors,
			fmt.Sprintf("Please submit at least %d %s.", fs.Options.MinNum, plural(fs.Options.MinNum, "form", "forms")))
	}
	return valid && len(fs.nonFormErrors) == 0
}

// NonFormErrors returns errors about the formset as a whole.
func (fs *Formset) NonFormErrors() []string {
	return fs.nonFormErrors
}

// EmptyForm returns the form used as a client side template for new
// children.
func (fs *Formset) EmptyForm() *Form {
	form := fs.newForm(fs.addPrefix(EmptyFormPrefix), -1, nil)
	form.EmptyPermitted = true
	return form
}

// ManagementForm renders the hidden inputs carrying the form counts.
func (fs *Formset) ManagementForm() (template.HTML, error) {
	counts := []struct {
		name  string
		value int
	}{
		{TotalFormCount, len(fs.Forms)},
		{InitialFormCount, fs.initialFormCount()},
		{MinNumFormCount, fs.Options.MinNum},
		{MaxNumFormCount, fs.maxNum},
	}
	var b strings.Builder
	for _, c := range counts {
		name := fs.addPrefix(c.name)
		html, err := HiddenInput(nil).Render(name, strconv.Itoa(c.value), Attrs{"id": "id_" + name})
		if err != nil {
			return "", err
		}
		b.WriteString(string(html))
	}
	return template.HTML(b.String()), nil
}
