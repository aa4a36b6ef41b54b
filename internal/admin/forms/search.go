package forms

const defaultSearchPlaceholder = "Search"

// NewSearchForm returns the admin header search form with its single
// required field q. An empty placeholder uses the default.
func NewSearchForm(placeholder string) *Form {
	if placeholder == "" {
		placeholder = defaultSearchPlaceholder
	}
	return NewForm("", &Field{
		Name:     "q",
		Label:    "Search term",
		Kind:     CharField,
		Required: true,
		Widget: TextInput(Attrs{
			"placeholder":          placeholder,
			"autofocus":            true,
			"data-w-search-target": "termInput",
			"data-action":          "keyup->w-search#search cut->w-search#search paste->w-search#search change->w-search#search",
		}),
	})
}
