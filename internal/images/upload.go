package images

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/backend/imageprocessing"
)

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("not a supported image format")
	ErrInvalidImage     = errors.New("not a valid image")
)

type Config struct {
	MaxUploadSize     int64    `yaml:"maxUploadSize" validate:"min=0"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	SVGFallbackWidth  int      `yaml:"svgFallbackWidth" validate:"min=0"`
	SVGFallbackHeight int      `yaml:"svgFallbackHeight" validate:"min=0"`
}

var defaultExtensions = []string{"gif", "jpg", "jpeg", "png", "webp", "svg"}

func (c Config) withDefaults() Config {
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = defaultExtensions
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 10 * 1024 * 1024
	}
	return c
}

// UploadResult describes a newly stored image and any existing images with
// the same file contents.
type UploadResult struct {
	Image      *database.Image
	Duplicates []*database.Image
}

func (r *UploadResult) IsDuplicate() bool {
	return len(r.Duplicates) > 0
}

// MaxUploadSize is the upper bound for uploaded files in bytes.
func (s *RenditionService) MaxUploadSize() int64 {
	return s.config.MaxUploadSize
}

// AllowedExtensions lists the accepted file extensions without the dot.
func (s *RenditionService) AllowedExtensions() []string {
	return slices.Clone(s.config.AllowedExtensions)
}

// ValidateUpload checks the extension and size of an uploaded file.
func (s *RenditionService) ValidateUpload(filename string, size int64) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !slices.Contains(s.config.AllowedExtensions, ext) {
		return fmt.Errorf("%w: %q, accepted formats are %s", ErrInvalidExtension, filename, strings.Join(s.config.AllowedExtensions, ", "))
	}
	if s.config.MaxUploadSize > 0 && size > s.config.MaxUploadSize {
		return fmt.Errorf("%w: %q is %d bytes, maximum is %d", ErrFileTooLarge, filename, size, s.config.MaxUploadSize)
	}
	return nil
}

// FileHash returns the hex SHA-1 of the file contents.
func FileHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// CreateImage validates and stores an uploaded file. Files identical to an
// already stored image are still saved; the existing images are reported so
// the uploader can decide which copy to keep.
func (s *RenditionService) CreateImage(ctx context.Context, title, filename string, data []byte, uploadedBy *int64) (*UploadResult, error) {
	if err := s.ValidateUpload(filename, int64(len(data))); err != nil {
		return nil, err
	}
	width, height, _, err := imageprocessing.DecodeConfig(data, s.decodeOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	hash := FileHash(data)
	duplicates, err := s.db.FindImagesByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	img := &database.Image{
		Title:            title,
		Filename:         filepath.Base(filename),
		File:             data,
		Width:            width,
		Height:           height,
		FileSize:         int64(len(data)),
		FileHash:         hash,
		UploadedByUserID: uploadedBy,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.db.CreateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to store image %q: %w", filename, err)
	}
	slog.Info("image uploaded", "image_id", img.ID, "filename", img.Filename, "duplicates", len(duplicates))
	return &UploadResult{Image: img, Duplicates: duplicates}, nil
}

// DeleteImage removes an image together with its renditions and their cache
// entries.
func (s *RenditionService) DeleteImage(ctx context.Context, id int64) error {
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return err
	}
	renditions, err := s.db.GetAllRenditions(ctx)
	if err != nil {
		return err
	}
	if err := s.db.DeleteImage(ctx, id); err != nil {
		return err
	}
	for _, r := range renditions {
		if r.ImageID == id {
			s.forget(ctx, img, r)
		}
	}
	return nil
}
