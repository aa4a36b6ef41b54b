package forms

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

type FieldKind string

const (
	CharField     FieldKind = "char"
	TextField     FieldKind = "text"
	IntegerField  FieldKind = "integer"
	BooleanField  FieldKind = "boolean"
	DateField     FieldKind = "date"
	DateTimeField FieldKind = "datetime"
	ChoiceField   FieldKind = "choice"
	HiddenField   FieldKind = "hidden"
	EmailField    FieldKind = "email"
	URLField      FieldKind = "url"
)

const requiredMessage = "This field is required."

var valueValidator = validator.New()

// Field declares one input of a Form.
type Field struct {
	Name      string
	Label     string
	Kind      FieldKind
	Required  bool
	HelpText  string
	Initial   string
	MaxLength int
	Choices   []Choice
	Widget    Widget
	// Format is the strftime format accepted by date and datetime fields in
	// addition to ISO 8601.
	Format     string
	Validators []func(value any) error
}

// DefaultWidget returns the widget used when Widget is nil.
func (f *Field) DefaultWidget() Widget {
	switch f.Kind {
	case TextField:
		return NewTextarea(nil)
	case IntegerField:
		return NumberInput(nil)
	case BooleanField:
		return NewCheckboxInput(nil)
	case DateField:
		return AdminDateInput(nil, f.Format, DateSettings{})
	case DateTimeField:
		return AdminDateTimeInput(nil, f.Format, "", "", DateSettings{})
	case ChoiceField:
		return NewSelect(nil, f.Choices)
	case HiddenField:
		return HiddenInput(nil)
	case EmailField:
		return EmailInput(nil)
	case URLField:
		return URLInput(nil)
	default:
		return TextInput(nil)
	}
}

func (f *Field) widget() Widget {
	if f.Widget != nil {
		return f.Widget
	}
	return f.DefaultWidget()
}

// Clean converts the raw submitted value into a typed value. Empty optional
// values clean to nil, or false for boolean fields.
func (f *Field) Clean(raw string, required bool) (any, error) {
	if f.Kind != TextField {
		raw = strings.TrimSpace(raw)
	}

	if f.Kind == BooleanField {
		checked := isTruthy(raw)
		if required && !checked {
			return nil, errors.New(requiredMessage)
		}
		return checked, f.runValidators(checked)
	}

	if raw == "" {
		if required {
			return nil, errors.New(requiredMessage)
		}
		return nil, nil
	}

	value, err := f.convert(raw)
	if err != nil {
		return nil, err
	}
	return value, f.runValidators(value)
}

func (f *Field) convert(raw string) (any, error) {
	switch f.Kind {
	case IntegerField:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("Enter a whole number.")
		}
		return n, nil
	case DateField:
		t, err := parseTime(raw, f.Format, DefaultDateFormat, "2006-01-02")
		if err != nil {
			return nil, errors.New("Enter a valid date.")
		}
		return t, nil
	case DateTimeField:
		t, err := parseTime(raw, f.Format, DefaultDateTimeFormat, "2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04")
		if err != nil {
			return nil, errors.New("Enter a valid date/time.")
		}
		return t, nil
	case ChoiceField:
		if !slices.Contains(AllValues(f.Choices), raw) {
			return nil, fmt.Errorf("Select a valid choice. %s is not one of the available choices.", raw)
		}
		return raw, nil
	case EmailField:
		if err := valueValidator.Var(raw, "email"); err != nil {
			return nil, errors.New("Enter a valid email address.")
		}
		return raw, nil
	case URLField:
		if err := valueValidator.Var(raw, "url"); err != nil {
			return nil, errors.New("Enter a valid URL.")
		}
		return raw, nil
	}
	if f.MaxLength > 0 && len([]rune(raw)) > f.MaxLength {
		return nil, fmt.Errorf("Ensure this value has at most %d characters (it has %d).", f.MaxLength, len([]rune(raw)))
	}
	return raw, nil
}

func (f *Field) runValidators(value any) error {
	for _, validate := range f.Validators {
		if err := validate(value); err != nil {
			return err
		}
	}
	return nil
}

func parseTime(raw, format string, fallbacks ...string) (time.Time, error) {
	layouts := make([]string, 0, len(fallbacks)+1)
	if format != "" {
		layouts = append(layouts, StrftimeToLayout(format))
	}
	for _, fb := range fallbacks {
		if strings.Contains(fb, "%") {
			fb = StrftimeToLayout(fb)
		}
		layouts = append(layouts, fb)
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// FormatValue renders a cleaned or initial value as the widget value.
func (f *Field) FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case time.Time:
		format := f.Format
		if format == "" {
			format = DefaultDateFormat
			if f.Kind == DateTimeField {
				format = DefaultDateTimeFormat
			}
		}
		return v.Format(StrftimeToLayout(format))
	default:
		return fmt.Sprint(v)
	}
}
