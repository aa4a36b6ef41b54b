package embeds

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	embedPolicyOnce sync.Once
	embedPolicy     *bluemonday.Policy
)

// SanitizeEmbedHTML strips provider markup down to players, iframes and
// quoted content. Scripts are always removed.
func SanitizeEmbedHTML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(embedSanitizer().Sanitize(trimmed))
}

func embedSanitizer() *bluemonday.Policy {
	embedPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowURLSchemes("http", "https")
		policy.AllowElements("iframe", "video", "audio", "source", "figure", "figcaption")

		policy.AllowAttrs(
			"src", "width", "height", "frameborder", "allow", "allowfullscreen",
			"title", "referrerpolicy", "loading", "scrolling",
		).OnElements("iframe")
		policy.AllowAttrs("controls", "width", "height", "poster", "preload").OnElements("video", "audio")
		policy.AllowAttrs("src", "type").OnElements("source")
		policy.AllowAttrs("class", "lang", "cite", "data-lang", "data-theme", "data-width", "data-dnt").OnElements("blockquote")
		policy.AllowAttrs("class").OnElements("div", "figure")

		embedPolicy = policy
	})
	return embedPolicy
}
