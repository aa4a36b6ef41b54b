package embeds

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/jo-hoe/cmsadmin/internal/cache"
)

// CachingFinder remembers successful lookups of the wrapped finder.
type CachingFinder struct {
	finder Finder
	cache  cache.Cache
}

func NewCachingFinder(finder Finder, c cache.Cache) *CachingFinder {
	return &CachingFinder{finder: finder, cache: c}
}

func embedCacheKey(rawURL string, maxWidth int) string {
	sum := md5.Sum([]byte(rawURL + "|" + strconv.Itoa(maxWidth)))
	return "embed-" + hex.EncodeToString(sum[:])
}

func (f *CachingFinder) Accept(rawURL string) bool {
	return f.finder.Accept(rawURL)
}

func (f *CachingFinder) FindEmbed(ctx context.Context, rawURL string, maxWidth int) (*Embed, error) {
	key := embedCacheKey(rawURL, maxWidth)
	if embed, ok, err := cache.GetJSON[Embed](ctx, f.cache, key); err != nil {
		slog.Warn("embed cache lookup failed", "key", key, "error", err)
	} else if ok {
		return embed, nil
	}

	embed, err := f.finder.FindEmbed(ctx, rawURL, maxWidth)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, f.cache, key, embed); err != nil {
		slog.Warn("failed to cache embed", "key", key, "error", err)
	}
	return embed, nil
}
