package forms

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// SlugReplacement is a client side replacement applied while slugifying.
type SlugReplacement struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// SlugInput is a text input bound to the w-slug controller. Attributes in
// attrs override the defaults. An empty locale omits the language code.
func SlugInput(attrs Attrs, locale string, replace []SlugReplacement, allowUnicode bool) *Input {
	pairs := make([][2]string, 0, len(replace))
	for _, r := range replace {
		pairs = append(pairs, [2]string{r.Pattern.String(), r.Replacement})
	}
	replaceJSON, _ := json.Marshal(pairs)

	defaults := Attrs{
		"data-controller":                 "w-slug",
		"data-action":                     "blur->w-slug#slugify w-sync:check->w-slug#compare w-sync:apply->w-slug#urlify:prevent",
		"data-w-slug-allow-unicode-value": allowUnicode,
		"data-w-slug-compare-as-param":    "urlify",
		"data-w-slug-replace-value":       string(replaceJSON),
		"data-w-slug-replace-flags-value": "igu",
	}
	if locale != "" {
		defaults["data-w-slug-language-code-value"] = locale
	}
	return TextInput(defaults.Merge(attrs))
}

var (
	slugStripPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	asciiStripPattern   = regexp.MustCompile(`[^\w\s-]`)
	slugCollapsePattern = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases value, removes everything except letters, digits,
// underscores and hyphens, and joins words with single hyphens. Without
// allowUnicode accents are stripped and other non-ASCII characters dropped.
func Slugify(value string, allowUnicode bool) string {
	if allowUnicode {
		value = norm.NFKC.String(value)
		value = slugStripPattern.ReplaceAllString(strings.ToLower(value), "")
	} else {
		value = toASCII(norm.NFKD.String(value), false)
		value = asciiStripPattern.ReplaceAllString(strings.ToLower(value), "")
	}
	value = slugCollapsePattern.ReplaceAllString(value, "-")
	return strings.Trim(value, "-_")
}

// toASCII drops non-ASCII runes, or writes them as backslash escapes.
func toASCII(value string, escape bool) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r <= unicode.MaxASCII:
			b.WriteRune(r)
		case !escape:
		case r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	return b.String()
}

// CautiousSlugify is an ASCII slugify that keeps non-ASCII characters
// distinguishable by spelling out their code points instead of dropping
// them. Accented Latin letters lose only their accent.
func CautiousSlugify(value string) string {
	return Slugify(toASCII(norm.NFKD.String(value), true), false)
}

// SafeSnakeCase converts value to a lowercase ASCII identifier with words
// joined by underscores.
func SafeSnakeCase(value string) string {
	return strings.ReplaceAll(CautiousSlugify(value), "-", "_")
}

// GetFieldCleanName converts a form field label into the key used for the
// field in submissions. The legacy conversion transliterates the label.
func GetFieldCleanName(label string, legacy bool) string {
	if legacy {
		return slug.Make(label)
	}
	return SafeSnakeCase(label)
}
