//go:build property
// +build property

package richtext

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCheckURLProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("script protocols are always rejected", prop.ForAll(
		func(protocol, rest string) bool {
			_, ok := CheckURL(protocol + rest)
			return !ok
		},
		gen.OneConstOf("javascript:", "JavaScript:", "java\tscript:", " javascript:", "vbscript:", "data:"),
		gen.AnyString(),
	))

	properties.Property("http urls pass unchanged", prop.ForAll(
		func(host, path string) bool {
			url := "https://" + host + "/" + path
			got, ok := CheckURL(url)
			return ok && got == url
		},
		gen.RegexMatch(`^[a-z0-9]+(\.[a-z0-9]+)*$`),
		gen.AlphaString(),
	))

	properties.Property("relative urls pass unchanged", prop.ForAll(
		func(path string) bool {
			got, ok := CheckURL("/" + path)
			return ok && got == "/"+path
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
