package forms

import (
	"encoding/json"
	"html/template"
	"net/url"
)

// Choice is a selectable option. A choice with Group set is an optgroup
// whose label is Label; its Value is ignored.
type Choice struct {
	Value string
	Label string
	Group []Choice
	// FilterValues lists the values of the filter field for which the
	// option is shown. nil means the option is always shown.
	FilterValues []string
}

type option struct {
	Value, Label string
	Selected     bool
	Attrs        template.HTMLAttr
}

type optgroup struct {
	Label   string
	Options []option
}

// Select renders a single-choice <select>.
type Select struct {
	Attrs   Attrs
	Choices []Choice

	optionAttrs func(c Choice) Attrs
}

func NewSelect(attrs Attrs, choices []Choice) *Select {
	return &Select{Attrs: attrs, Choices: choices}
}

func (w *Select) optgroups(value string) []optgroup {
	var groups []optgroup
	hasSelected := false
	build := func(c Choice) option {
		selected := !hasSelected && c.Value == value
		hasSelected = hasSelected || selected
		var attrs Attrs
		if w.optionAttrs != nil {
			attrs = w.optionAttrs(c)
		}
		return option{Value: c.Value, Label: c.Label, Selected: selected, Attrs: attrs.Flatten()}
	}
	for _, c := range w.Choices {
		if c.Group != nil {
			g := optgroup{Label: c.Label}
			for _, sub := range c.Group {
				g.Options = append(g.Options, build(sub))
			}
			groups = append(groups, g)
			continue
		}
		groups = append(groups, optgroup{Options: []option{build(c)}})
	}
	return groups
}

func (w *Select) Render(name, value string, attrs Attrs) (template.HTML, error) {
	return renderWidget("select", struct {
		Name   string
		Groups []optgroup
		Attrs  template.HTMLAttr
	}{name, w.optgroups(value), w.Attrs.Merge(attrs).Flatten()})
}

func (w *Select) ValueFromData(data url.Values, name string) string {
	return data.Get(name)
}

func (w *Select) IsHidden() bool { return false }

// FilteredSelect is a select whose options are shown or hidden client side
// depending on the value of the field named FilterField.
func FilteredSelect(attrs Attrs, choices []Choice, filterField string) *Select {
	w := NewSelect(attrs, choices)
	w.optionAttrs = func(c Choice) Attrs {
		if c.FilterValues == nil {
			return nil
		}
		// the empty string keeps the option visible while nothing is selected
		match, _ := json.Marshal(map[string][]string{filterField: append([]string{""}, c.FilterValues...)})
		return Attrs{
			"data-match":         string(match),
			"data-w-cond-target": "show",
		}
	}
	return w
}

// AllValues returns the values of all choices including grouped ones.
func AllValues(choices []Choice) []string {
	var out []string
	for _, c := range choices {
		if c.Group != nil {
			out = append(out, AllValues(c.Group)...)
			continue
		}
		out = append(out, c.Value)
	}
	return out
}
