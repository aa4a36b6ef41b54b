package frontend

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

const viewsPattern = "views/*.html"

//go:embed views/*.html
var templateFS embed.FS

//go:embed views/icon.svg
var assetsFS embed.FS

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// Template renders the embedded views. Every view is looked up by its file
// name and pulls in the shared header and footer from layout.html.
type Template struct {
	templates *template.Template
}

func NewTemplate() *Template {
	return &Template{
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, viewsPattern)),
	}
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}
