package embeds

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider describes an oEmbed endpoint and the URLs it serves.
type Provider struct {
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	// URLs are regular expressions matched against the start of a URL.
	URLs []string `yaml:"urls"`
	// Templates rewrite a matching URL before it is sent to the endpoint.
	Templates []URLTemplate `yaml:"templates"`
}

// URLTemplate rewrites URLs matching Pattern using regexp.Expand syntax.
type URLTemplate struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// DefaultProviders is the built-in provider table.
var DefaultProviders = []Provider{
	{
		Endpoint: "https://www.youtube.com/oembed",
		URLs: []string{
			`^https?://(?:[-\w]+\.)?youtube\.com/watch.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/v/.+$`,
			`^https?://youtu\.be/.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/user/.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/[^#?/]+#[^#?/]+/.+$`,
			`^https?://m\.youtube\.com/index.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/profile.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/view_play_list.+$`,
			`^https?://(?:[-\w]+\.)?youtube\.com/playlist.+$`,
		},
		Templates: []URLTemplate{
			{Pattern: `^https?://(?:[-\w]+\.)?youtube\.com/shorts/([-\w]+)`, Replacement: "https://www.youtube.com/watch?v=${1}"},
		},
	},
	{
		Endpoint: "https://vimeo.com/api/oembed.{format}",
		URLs: []string{
			`^https?://(?:www\.)?vimeo\.com/.+$`,
			`^https?://player\.vimeo\.com/.+$`,
		},
	},
	{
		Endpoint: "https://soundcloud.com/oembed",
		URLs:     []string{`^https?://soundcloud\.com/[^#?/]+/.+$`},
	},
	{
		Endpoint: "https://www.flickr.com/services/oembed/",
		URLs: []string{
			`^https?://(?:[-\w]+\.)?flickr\.com/photos/[^#?/]+/(?:sets|photos)/.+$`,
			`^https?://(?:[-\w]+\.)?flickr\.com/photos/[^#?/]+/\d+.*$`,
			`^https?://flic\.kr/.+$`,
		},
	},
	{
		Endpoint: "https://www.slideshare.net/api/oembed/2",
		URLs:     []string{`^https?://(?:www\.)?slideshare\.net/[^#?/]+/.+$`},
	},
	{
		Endpoint: "https://embed.spotify.com/oembed/",
		URLs: []string{
			`^https?://open\.spotify\.com/.+$`,
			`^https?://spoti\.fi/.+$`,
		},
	},
	{
		Endpoint: "https://publish.twitter.com/oembed",
		URLs: []string{
			`^https?://(?:www\.)?twitter\.com/.+?/status(?:es)?/.+$`,
			`^https?://(?:www\.)?x\.com/.+?/status(?:es)?/.+$`,
		},
	},
	{
		Endpoint: "https://www.ted.com/services/v1/oembed.{format}",
		URLs:     []string{`^https?://(?:www\.)?ted\.com/talks/.+$`},
	},
	{
		Endpoint: "https://www.dailymotion.com/services/oembed",
		URLs: []string{
			`^https?://(?:www\.)?dailymotion\.com/.+$`,
			`^https?://dai\.ly/.+$`,
		},
	},
}

type compiledTemplate struct {
	pattern     *regexp.Regexp
	replacement string
}

type endpoint struct {
	url       string
	patterns  []*regexp.Regexp
	templates []compiledTemplate
}

// compilePattern anchors a provider pattern at the start of the URL.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^(?:" + pattern + ")"
	}
	return regexp.Compile(pattern)
}

func compileProviders(providers []Provider) ([]endpoint, error) {
	endpoints := make([]endpoint, 0, len(providers))
	for _, p := range providers {
		if p.Endpoint == "" {
			return nil, fmt.Errorf("oembed provider without endpoint")
		}
		e := endpoint{url: strings.ReplaceAll(p.Endpoint, "{format}", "json")}
		for _, u := range p.URLs {
			re, err := compilePattern(u)
			if err != nil {
				return nil, fmt.Errorf("invalid url pattern %q for %s: %w", u, p.Endpoint, err)
			}
			e.patterns = append(e.patterns, re)
		}
		for _, t := range p.Templates {
			re, err := compilePattern(t.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid template pattern %q for %s: %w", t.Pattern, p.Endpoint, err)
			}
			e.templates = append(e.templates, compiledTemplate{pattern: re, replacement: t.Replacement})
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// LoadProviders reads a YAML list of providers.
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file %s: %w", path, err)
	}
	var providers []Provider
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("failed to parse providers file %s: %w", path, err)
	}
	return providers, nil
}
