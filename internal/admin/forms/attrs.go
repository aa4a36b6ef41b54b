package forms

import (
	"fmt"
	"html"
	"html/template"
	"maps"
	"slices"
	"strings"
)

// Attrs holds HTML attributes. A true bool renders as a bare attribute and
// a false bool or nil value is omitted.
type Attrs map[string]any

// Merge returns a copy of a with the entries of others applied in order.
func (a Attrs) Merge(others ...Attrs) Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// String returns the attribute value as rendered, or "" for bare and
// omitted attributes.
func (a Attrs) String(key string) string {
	switch v := a[key].(type) {
	case nil, bool:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Flatten renders the attributes in name order, each preceded by a space.
func (a Attrs) Flatten() template.HTMLAttr {
	var b strings.Builder
	for _, key := range slices.Sorted(maps.Keys(a)) {
		switch v := a[key].(type) {
		case nil:
		case bool:
			if v {
				b.WriteString(" " + html.EscapeString(key))
			}
		default:
			fmt.Fprintf(&b, ` %s="%s"`, html.EscapeString(key), html.EscapeString(a.String(key)))
		}
	}
	return template.HTMLAttr(b.String())
}
