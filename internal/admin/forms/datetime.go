package forms

import (
	"encoding/json"
	"html/template"
	"strings"
)

const (
	DefaultDateFormat     = "%Y-%m-%d"
	DefaultDateTimeFormat = "%Y-%m-%d %H:%M"
	DefaultTimeFormat     = "%H:%M"
)

// DateSettings are the site wide defaults for date widgets.
type DateSettings struct {
	DateFormat     string `yaml:"dateFormat"`
	DateTimeFormat string `yaml:"datetimeFormat"`
	TimeFormat     string `yaml:"timeFormat"`
	FirstDayOfWeek int    `yaml:"firstDayOfWeek" validate:"min=0,max=6"`
}

func (s DateSettings) withDefaults() DateSettings {
	if s.DateFormat == "" {
		s.DateFormat = DefaultDateFormat
	}
	if s.DateTimeFormat == "" {
		s.DateTimeFormat = DefaultDateTimeFormat
	}
	if s.TimeFormat == "" {
		s.TimeFormat = DefaultTimeFormat
	}
	return s
}

var datetimepickerReplacer = strings.NewReplacer(
	"%a", "D", "%A", "l", "%b", "M", "%B", "F", "%c", "", "%d", "d",
	"%H", "H", "%I", "h", "%j", "z", "%m", "m", "%M", "i", "%p", "A",
	"%S", "s", "%U", "", "%w", "w", "%W", "W", "%x", "", "%X", "",
	"%y", "y", "%Y", "Y", "%Z", "e", "%z", "O", "%%", "%",
)

// ToDatetimepickerFormat converts a strftime format into the format syntax
// of the client side date picker.
func ToDatetimepickerFormat(format string) string {
	return datetimepickerReplacer.Replace(format)
}

var layoutReplacer = strings.NewReplacer(
	"%a", "Mon", "%A", "Monday", "%b", "Jan", "%B", "January", "%d", "02",
	"%H", "15", "%I", "03", "%m", "01", "%M", "04", "%p", "PM", "%S", "05",
	"%y", "06", "%Y", "2006", "%z", "-0700", "%Z", "MST", "%%", "%",
)

// StrftimeToLayout converts a strftime format into a time layout.
func StrftimeToLayout(format string) string {
	return layoutReplacer.Replace(format)
}

type datePickerOptions struct {
	DayOfWeekStart *int   `json:"dayOfWeekStart,omitempty"`
	Format         string `json:"format"`
	FormatTime     string `json:"formatTime,omitempty"`
	ParentID       string `json:"parentID,omitempty"`
}

// DateInput is a text input enhanced by the w-date controller.
type DateInput struct {
	Input
	// Format is the strftime format of the rendered value.
	Format  string
	options datePickerOptions
}

func newDateInput(mode string, attrs Attrs) *DateInput {
	defaults := Attrs{
		"autocomplete":           "off",
		"data-controller":        "w-date",
		"data-w-date-mode-value": mode,
	}
	return &DateInput{Input: Input{Type: "text", Attrs: defaults.Merge(attrs)}}
}

// AdminDateInput renders a date picker. An empty format falls back to the
// settings.
func AdminDateInput(attrs Attrs, format string, settings DateSettings) *DateInput {
	settings = settings.withDefaults()
	if format == "" {
		format = settings.DateFormat
	}
	w := newDateInput("date", attrs)
	w.Format = format
	firstDay := settings.FirstDayOfWeek
	w.options = datePickerOptions{DayOfWeekStart: &firstDay, Format: ToDatetimepickerFormat(format)}
	return w
}

func AdminTimeInput(attrs Attrs, format string, settings DateSettings) *DateInput {
	settings = settings.withDefaults()
	if format == "" {
		format = settings.TimeFormat
	}
	w := newDateInput("time", attrs)
	w.Format = format
	js := ToDatetimepickerFormat(format)
	w.options = datePickerOptions{Format: js, FormatTime: js}
	return w
}

// AdminDateTimeInput renders a combined date and time picker whose overlay
// is attached to the element matched by overlayParentSelector ("body" when
// empty).
func AdminDateTimeInput(attrs Attrs, format, timeFormat, overlayParentSelector string, settings DateSettings) *DateInput {
	settings = settings.withDefaults()
	if format == "" {
		format = settings.DateTimeFormat
	}
	if timeFormat == "" {
		timeFormat = settings.TimeFormat
	}
	if overlayParentSelector == "" {
		overlayParentSelector = "body"
	}
	w := newDateInput("datetime", attrs)
	w.Format = format
	firstDay := settings.FirstDayOfWeek
	w.options = datePickerOptions{
		DayOfWeekStart: &firstDay,
		Format:         ToDatetimepickerFormat(format),
		FormatTime:     ToDatetimepickerFormat(timeFormat),
		ParentID:       overlayParentSelector,
	}
	return w
}

// Config returns the JSON passed to the date picker.
func (w *DateInput) Config() string {
	raw, _ := json.Marshal(w.options)
	return string(raw)
}

func (w *DateInput) Render(name, value string, attrs Attrs) (template.HTML, error) {
	return w.Input.Render(name, value, Attrs{"data-w-date-options-value": w.Config()}.Merge(attrs))
}
