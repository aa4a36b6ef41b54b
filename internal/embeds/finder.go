package embeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrEmbedNotFound = errors.New("embed not found")

// Embed is the normalised result of an oEmbed lookup.
type Embed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ProviderName string `json:"provider_name"`
	Type         string `json:"type"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	HTML         string `json:"html"`
}

type Finder interface {
	Accept(rawURL string) bool
	FindEmbed(ctx context.Context, rawURL string, maxWidth int) (*Embed, error)
}

type Config struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxWidth  int           `yaml:"maxWidth" validate:"min=0"`
	Providers []Provider    `yaml:"providers" validate:"dive"`
	// ProvidersFile optionally points at a YAML list of extra providers.
	ProvidersFile string `yaml:"providersFile"`
}

// OEmbedFinder resolves URLs through the oEmbed endpoint of the first
// provider whose patterns match.
type OEmbedFinder struct {
	endpoints []endpoint
	client    *http.Client
	options   url.Values
}

type Option func(*OEmbedFinder)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *OEmbedFinder) {
		f.client = client
	}
}

// WithOptions adds query parameters sent with every request.
func WithOptions(options url.Values) Option {
	return func(f *OEmbedFinder) {
		for k, v := range options {
			f.options[k] = append([]string(nil), v...)
		}
	}
}

// NewOEmbedFinder builds a finder for providers, or DefaultProviders when
// providers is empty.
func NewOEmbedFinder(providers []Provider, opts ...Option) (*OEmbedFinder, error) {
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	endpoints, err := compileProviders(providers)
	if err != nil {
		return nil, err
	}
	f := &OEmbedFinder{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		options:   url.Values{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *OEmbedFinder) endpointFor(rawURL string) (string, string, bool) {
	for _, e := range f.endpoints {
		for _, pattern := range e.patterns {
			if pattern.MatchString(rawURL) {
				return e.url, rawURL, true
			}
		}
		for _, t := range e.templates {
			match := t.pattern.FindStringSubmatchIndex(rawURL)
			if match != nil {
				expanded := t.pattern.ExpandString(nil, t.replacement, rawURL, match)
				return e.url, string(expanded), true
			}
		}
	}
	return "", "", false
}

func (f *OEmbedFinder) Accept(rawURL string) bool {
	_, _, ok := f.endpointFor(rawURL)
	return ok
}

type oembedResponse struct {
	Type         string      `json:"type"`
	URL          string      `json:"url"`
	Title        string      `json:"title"`
	AuthorName   string      `json:"author_name"`
	ProviderName string      `json:"provider_name"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Width        json.Number `json:"width"`
	Height       json.Number `json:"height"`
	HTML         string      `json:"html"`
}

func (f *OEmbedFinder) FindEmbed(ctx context.Context, rawURL string, maxWidth int) (*Embed, error) {
	endpointURL, target, ok := f.endpointFor(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: no provider for %s", ErrEmbedNotFound, rawURL)
	}

	params := url.Values{}
	for k, v := range f.options {
		params[k] = v
	}
	params.Set("url", target)
	params.Set("format", "json")
	if maxWidth > 0 {
		params.Set("maxwidth", strconv.Itoa(maxWidth))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedNotFound, err)
	}
	req.Header.Set("User-agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Warn("oembed request failed", "endpoint", endpointURL, "url", target, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbedNotFound, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("oembed provider returned an error", "endpoint", endpointURL, "url", target, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: provider answered %d", ErrEmbedNotFound, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedNotFound, err)
	}
	var oembed oembedResponse
	if err := json.Unmarshal(body, &oembed); err != nil {
		return nil, fmt.Errorf("%w: invalid oembed response: %v", ErrEmbedNotFound, err)
	}

	embed := &Embed{
		Title:        oembed.Title,
		AuthorName:   oembed.AuthorName,
		ProviderName: oembed.ProviderName,
		Type:         oembed.Type,
		ThumbnailURL: oembed.ThumbnailURL,
		Width:        dimension(oembed.Width),
		Height:       dimension(oembed.Height),
	}
	if oembed.Type == "photo" {
		embed.HTML = fmt.Sprintf(`<img src="%s" />`, html.EscapeString(oembed.URL))
	} else {
		embed.HTML = SanitizeEmbedHTML(oembed.HTML)
	}
	return embed, nil
}

// dimension accepts numbers and numeric strings; anything else is 0.
func dimension(n json.Number) int {
	if n == "" {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}
