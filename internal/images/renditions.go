package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/backend/imageprocessing"
	"github.com/jo-hoe/cmsadmin/internal/cache"
)

// ThumbnailSpec is the filter used for admin listing thumbnails.
const ThumbnailSpec = "max-165x165"

// RenditionService finds, creates and maintains renditions of images.
type RenditionService struct {
	db     database.DatabaseService
	cache  cache.Cache
	config Config
}

func NewRenditionService(db database.DatabaseService, c cache.Cache, cfg Config) *RenditionService {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &RenditionService{db: db, cache: c, config: cfg.withDefaults()}
}

func (s *RenditionService) decodeOptions() imageprocessing.DecodeOptions {
	return imageprocessing.DecodeOptions{
		SVGFallbackWidth:  s.config.SVGFallbackWidth,
		SVGFallbackHeight: s.config.SVGFallbackHeight,
	}
}

func focalPoint(img *database.Image) *imageprocessing.FocalPoint {
	if img.FocalPoint == nil {
		return nil
	}
	fp := img.FocalPoint
	return &imageprocessing.FocalPoint{X: fp.X, Y: fp.Y, Width: fp.Width, Height: fp.Height}
}

// renditionCacheKey identifies a rendition of a specific version of an
// image file, so replacing the file invalidates old entries.
func renditionCacheKey(img *database.Image, filterKey, spec string) string {
	return "rendition-" + strings.Join([]string{strconv.FormatInt(img.ID, 10), img.FileHash, filterKey, spec}, "-")
}

// GetRendition returns the rendition of img for spec, generating and storing
// it on first use.
func (s *RenditionService) GetRendition(ctx context.Context, img *database.Image, spec string) (*database.Rendition, error) {
	filter, err := imageprocessing.ParseFilter(spec)
	if err != nil {
		return nil, err
	}
	filterKey := filter.CacheKey(focalPoint(img))
	key := renditionCacheKey(img, filterKey, spec)

	if cached, ok, err := cache.GetJSON[database.Rendition](ctx, s.cache, key); err != nil {
		slog.Warn("rendition cache lookup failed", "key", key, "error", err)
	} else if ok {
		return cached, nil
	}

	rendition, err := s.db.FindRendition(ctx, img.ID, spec, filterKey)
	if errors.Is(err, database.ErrNotFound) {
		rendition, err = s.createRendition(ctx, img, filter, filterKey)
	}
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, rendition); err != nil {
		slog.Warn("failed to cache rendition", "key", key, "error", err)
	}
	return rendition, nil
}

func (s *RenditionService) createRendition(ctx context.Context, img *database.Image, filter *imageprocessing.Filter, filterKey string) (*database.Rendition, error) {
	result, err := filter.Run(img.File, focalPoint(img), s.decodeOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to render %q for image %d: %w", filter.Spec, img.ID, err)
	}
	rendition := &database.Rendition{
		ImageID:       img.ID,
		FilterSpec:    filter.Spec,
		FocalPointKey: filterKey,
		File:          result.Data,
		Width:         result.Width,
		Height:        result.Height,
		Format:        result.Format,
	}
	if err := s.db.CreateRendition(ctx, rendition); err != nil {
		// a concurrent request may have stored the same rendition first
		if existing, findErr := s.db.FindRendition(ctx, img.ID, filter.Spec, filterKey); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	slog.Info("created rendition", "image_id", img.ID, "spec", filter.Spec, "rendition_id", rendition.ID)
	return rendition, nil
}

// GetRenditions returns one rendition per spec, keyed by spec. Specs may use
// brace expansion.
func (s *RenditionService) GetRenditions(ctx context.Context, img *database.Image, specs ...string) (map[string]*database.Rendition, error) {
	out := make(map[string]*database.Rendition, len(specs))
	for _, pattern := range specs {
		expanded, err := imageprocessing.ExpandSpec(pattern)
		if err != nil {
			return nil, err
		}
		for _, spec := range expanded {
			r, err := s.GetRendition(ctx, img, spec)
			if err != nil {
				return nil, err
			}
			out[spec] = r
		}
	}
	return out, nil
}

// PurgeRendition deletes a rendition and its cache entry.
func (s *RenditionService) PurgeRendition(ctx context.Context, img *database.Image, r *database.Rendition) error {
	if err := s.db.DeleteRendition(ctx, r.ID); err != nil {
		return err
	}
	s.forget(ctx, img, r)
	return nil
}

// RegenerateRendition re-runs the filter of r over the original image and
// overwrites the stored file.
func (s *RenditionService) RegenerateRendition(ctx context.Context, img *database.Image, r *database.Rendition) error {
	filter, err := imageprocessing.ParseFilter(r.FilterSpec)
	if err != nil {
		return err
	}
	result, err := filter.Run(img.File, focalPoint(img), s.decodeOptions())
	if err != nil {
		return err
	}
	r.File = result.Data
	r.Width = result.Width
	r.Height = result.Height
	r.Format = result.Format
	if err := s.db.UpdateRenditionFile(ctx, r); err != nil {
		return err
	}
	s.forget(ctx, img, r)
	return nil
}

func (s *RenditionService) forget(ctx context.Context, img *database.Image, r *database.Rendition) {
	key := renditionCacheKey(img, r.FocalPointKey, r.FilterSpec)
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("failed to purge rendition from cache", "key", key, "error", err)
	}
}
