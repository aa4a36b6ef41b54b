package forms

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var widgetTemplates = template.Must(template.New("widgets").ParseFS(templateFS, "templates/widgets.html"))

// Widget renders the HTML control of a form field.
type Widget interface {
	Render(name, value string, attrs Attrs) (template.HTML, error)
	// ValueFromData extracts the submitted value for name.
	ValueFromData(data url.Values, name string) string
	IsHidden() bool
}

func renderWidget(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := widgetTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Input renders an <input> element of the given type.
type Input struct {
	Type  string
	Attrs Attrs
}

func TextInput(attrs Attrs) *Input     { return &Input{Type: "text", Attrs: attrs} }
func HiddenInput(attrs Attrs) *Input   { return &Input{Type: "hidden", Attrs: attrs} }
func NumberInput(attrs Attrs) *Input   { return &Input{Type: "number", Attrs: attrs} }
func EmailInput(attrs Attrs) *Input    { return &Input{Type: "email", Attrs: attrs} }
func URLInput(attrs Attrs) *Input      { return &Input{Type: "url", Attrs: attrs} }
func PasswordInput(attrs Attrs) *Input { return &Input{Type: "password", Attrs: attrs} }

func (w *Input) Render(name, value string, attrs Attrs) (template.HTML, error) {
	merged := w.Attrs.Merge(attrs)
	if _, ok := merged["value"]; ok {
		if value == "" {
			value = merged.String("value")
		}
		delete(merged, "value")
	}
	if w.Type == "password" {
		value = ""
	}
	return renderWidget("input", struct {
		Type, Name, Value string
		Attrs             template.HTMLAttr
	}{w.Type, name, value, merged.Flatten()})
}

func (w *Input) ValueFromData(data url.Values, name string) string {
	return data.Get(name)
}

func (w *Input) IsHidden() bool {
	return w.Type == "hidden"
}

type Textarea struct {
	Attrs Attrs
}

func NewTextarea(attrs Attrs) *Textarea {
	return &Textarea{Attrs: Attrs{"cols": "40", "rows": "10"}.Merge(attrs)}
}

func (w *Textarea) Render(name, value string, attrs Attrs) (template.HTML, error) {
	return renderWidget("textarea", struct {
		Name, Value string
		Attrs       template.HTMLAttr
	}{name, value, w.Attrs.Merge(attrs).Flatten()})
}

func (w *Textarea) ValueFromData(data url.Values, name string) string {
	return data.Get(name)
}

func (w *Textarea) IsHidden() bool { return false }

// CheckboxInput submits "on" when checked and nothing otherwise.
type CheckboxInput struct {
	Attrs Attrs
}

func NewCheckboxInput(attrs Attrs) *CheckboxInput {
	return &CheckboxInput{Attrs: attrs}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "off", "no":
		return false
	}
	return true
}

func (w *CheckboxInput) Render(name, value string, attrs Attrs) (template.HTML, error) {
	return renderWidget("checkbox", struct {
		Name    string
		Checked bool
		Attrs   template.HTMLAttr
	}{name, isTruthy(value), w.Attrs.Merge(attrs).Flatten()})
}

func (w *CheckboxInput) ValueFromData(data url.Values, name string) string {
	if !data.Has(name) {
		return ""
	}
	if isTruthy(data.Get(name)) {
		return "true"
	}
	return ""
}

func (w *CheckboxInput) IsHidden() bool { return false }
