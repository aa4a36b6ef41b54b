package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

type UpdateOptions struct {
	// Purge deletes each rendition and creates it again from the original.
	Purge bool
	// PurgeOnly deletes renditions without regenerating them.
	PurgeOnly bool
	NoColor   bool
}

func successStyle(msg string, noColor bool) string {
	if noColor {
		return msg
	}
	return "\x1b[32;1m" + msg + "\x1b[0m"
}

// UpdateRenditions regenerates or purges every stored rendition. Failures for
// single renditions are reported on stderr and do not stop the run.
func (s *RenditionService) UpdateRenditions(ctx context.Context, opts UpdateOptions, stdout, stderr io.Writer) error {
	renditions, err := s.db.GetAllRenditions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list renditions: %w", err)
	}
	if len(renditions) == 0 {
		_, err := fmt.Fprintln(stdout, "No image renditions found!")
		return err
	}

	images := make(map[int64]*database.Image)
	lookup := func(id int64) (*database.Image, error) {
		if img, ok := images[id]; ok {
			return img, nil
		}
		img, err := s.db.GetImage(ctx, id)
		if err != nil {
			return nil, err
		}
		images[id] = img
		return img, nil
	}

	successCount := 0
	for _, r := range renditions {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := lookup(r.ImageID)
		title := fmt.Sprintf("image %d", r.ImageID)
		if err == nil {
			title = img.Title
		}

		switch {
		case opts.Purge:
			if err == nil {
				err = s.PurgeRendition(ctx, img, r)
			}
			if err == nil {
				_, err = s.GetRendition(ctx, img, r.FilterSpec)
			}
			if err != nil {
				slog.Warn("failed to purge and regenerate rendition", "rendition_id", r.ID, "error", err)
				fmt.Fprintf(stderr, "Could not purge and regenerate rendition for %s\n", title)
			} else {
				successCount++
			}
		case opts.PurgeOnly:
			if err == nil {
				err = s.PurgeRendition(ctx, img, r)
			}
			if err != nil {
				slog.Warn("failed to purge rendition", "rendition_id", r.ID, "error", err)
				fmt.Fprintf(stderr, "Could not purge rendition for %s\n", title)
			} else {
				successCount++
			}
		default:
			if err == nil {
				err = s.RegenerateRendition(ctx, img, r)
			}
			if err != nil {
				slog.Warn("failed to regenerate rendition", "rendition_id", r.ID, "error", err)
				fmt.Fprintf(stderr, "Could not regenerate rendition for %s\n", title)
			} else {
				successCount++
			}
		}
	}

	var msg string
	switch {
	case opts.Purge:
		msg = fmt.Sprintf("Successfully purged and regenerated %d image renditions!", successCount)
	case opts.PurgeOnly:
		msg = fmt.Sprintf("Successfully purged %d image renditions!", successCount)
	default:
		msg = fmt.Sprintf("Successfully regenerated %d image renditions!", successCount)
	}
	_, err = fmt.Fprintln(stdout, successStyle(msg, opts.NoColor))
	return err
}
