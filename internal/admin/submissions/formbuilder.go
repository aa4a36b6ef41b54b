package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

// Field types a form page can declare.
const (
	SingleLine  = "singleline"
	MultiLine   = "multiline"
	Email       = "email"
	Number      = "number"
	URL         = "url"
	Checkbox    = "checkbox"
	Checkboxes  = "checkboxes"
	Dropdown    = "dropdown"
	MultiSelect = "multiselect"
	Radio       = "radio"
	Date        = "date"
	DateTime    = "datetime"
	Hidden      = "hidden"
)

var FieldTypes = []forms.Choice{
	{Value: SingleLine, Label: "Single line text"},
	{Value: MultiLine, Label: "Multi-line text"},
	{Value: Email, Label: "Email"},
	{Value: Number, Label: "Number"},
	{Value: URL, Label: "URL"},
	{Value: Checkbox, Label: "Checkbox"},
	{Value: Checkboxes, Label: "Checkboxes"},
	{Value: Dropdown, Label: "Drop down"},
	{Value: MultiSelect, Label: "Multiple select"},
	{Value: Radio, Label: "Radio buttons"},
	{Value: Date, Label: "Date"},
	{Value: DateTime, Label: "Date/time"},
	{Value: Hidden, Label: "Hidden field"},
}

func isMultiValue(fieldType string) bool {
	return fieldType == Checkboxes || fieldType == MultiSelect
}

// ParseChoices splits the stored choices of a field: one per line, or comma
// separated when written on a single line.
func ParseChoices(raw string) []string {
	sep := ","
	if strings.Contains(raw, "\n") {
		sep = "\n"
	}
	var out []string
	for _, c := range strings.Split(raw, sep) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func validNumber(value any) error {
	s, _ := value.(string)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return errors.New("Enter a number.")
	}
	return nil
}

// BuildForm turns the fields of a form page into a form.
func BuildForm(fields []*database.FormField) *forms.Form {
	form := forms.NewForm("")
	for _, ff := range fields {
		field := &forms.Field{
			Name:     ff.CleanName,
			Label:    ff.Label,
			Required: ff.Required,
			HelpText: ff.HelpText,
			Initial:  ff.DefaultValue,
		}
		var choices []forms.Choice
		for _, c := range ParseChoices(ff.Choices) {
			choices = append(choices, forms.Choice{Value: c, Label: c})
		}
		switch ff.FieldType {
		case MultiLine:
			field.Kind = forms.TextField
		case Email:
			field.Kind = forms.EmailField
		case Number:
			field.Kind = forms.CharField
			field.Widget = forms.NumberInput(nil)
			field.Validators = append(field.Validators, validNumber)
		case URL:
			field.Kind = forms.URLField
		case Checkbox:
			field.Kind = forms.BooleanField
		case Dropdown, Radio:
			field.Kind = forms.ChoiceField
			field.Choices = choices
		case Checkboxes, MultiSelect:
			field.Kind = forms.ChoiceField
			field.Choices = choices
			field.Widget = forms.NewSelect(forms.Attrs{"multiple": true}, choices)
		case Date:
			field.Kind = forms.DateField
		case DateTime:
			field.Kind = forms.DateTimeField
		case Hidden:
			field.Kind = forms.HiddenField
		default:
			field.Kind = forms.CharField
			field.MaxLength = 255
		}
		form.AddField(field)
	}

	// multi-value fields submit every selected choice under the same name
	form.Clean = func(f *forms.Form) {
		for _, ff := range fields {
			if !isMultiValue(ff.FieldType) {
				continue
			}
			if _, failed := f.Errors()[ff.CleanName]; failed {
				continue
			}
			field := f.Field(ff.CleanName)
			selected := f.Data()[ff.CleanName]
			for _, v := range selected {
				if !slices.Contains(forms.AllValues(field.Choices), v) {
					f.AddError(ff.CleanName, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", v))
					break
				}
			}
			if _, failed := f.Errors()[ff.CleanName]; !failed {
				f.CleanedData()[ff.CleanName] = slices.Clone(selected)
			}
		}
	}
	return form
}

// Serialize encodes cleaned form data the way submissions store it. Dates
// are written as ISO 8601.
func Serialize(fields []*database.FormField, cleaned map[string]any) (string, error) {
	data := make(map[string]any, len(cleaned))
	for _, ff := range fields {
		v, ok := cleaned[ff.CleanName]
		if !ok {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			if ff.FieldType == Date {
				v = t.Format("2006-01-02")
			} else {
				v = t.Format(time.RFC3339)
			}
		}
		data[ff.CleanName] = v
	}
	b, err := json.Marshal(data)
	return string(b), err
}

// Submit validates data against the form page's fields and stores a
// submission when it is valid. The bound form is returned either way.
func (s *Service) Submit(ctx context.Context, page *database.Page, data url.Values) (*forms.Form, *database.FormSubmission, error) {
	fields, err := s.db.GetFormFields(ctx, page.ID)
	if err != nil {
		return nil, nil, err
	}
	form := BuildForm(fields)
	if err := form.Bind(data); err != nil {
		return nil, nil, err
	}
	if !form.IsValid() {
		return form, nil, nil
	}
	payload, err := Serialize(fields, form.CleanedData())
	if err != nil {
		return form, nil, err
	}
	submission := &database.FormSubmission{PageID: page.ID, FormData: payload, SubmitTime: time.Now().UTC()}
	if err := s.db.AddSubmission(ctx, submission); err != nil {
		return form, nil, fmt.Errorf("storing submission for page %d: %w", page.ID, err)
	}
	return form, submission, nil
}
