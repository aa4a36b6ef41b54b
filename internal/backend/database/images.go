package database

import (
	"context"
	"database/sql"
	"fmt"
)

const imageColumns = `id, title, filename, file, width, height, file_size, file_hash, focal_point_x, focal_point_y,
	focal_point_width, focal_point_height, uploaded_by_user_id, created_at`

func scanImage(row rowScanner) (*Image, error) {
	var img Image
	var fx, fy, fw, fh, uploader sql.NullInt64
	var created int64
	if err := row.Scan(&img.ID, &img.Title, &img.Filename, &img.File, &img.Width, &img.Height, &img.FileSize,
		&img.FileHash, &fx, &fy, &fw, &fh, &uploader, &created); err != nil {
		return nil, err
	}
	if fx.Valid && fy.Valid && fw.Valid && fh.Valid {
		img.FocalPoint = &FocalPoint{X: int(fx.Int64), Y: int(fy.Int64), Width: int(fw.Int64), Height: int(fh.Int64)}
	}
	img.UploadedByUserID = intPtr(uploader)
	img.CreatedAt = fromNanos(created)
	return &img, nil
}

func (s *SQLiteDatabase) CreateImage(ctx context.Context, image *Image) error {
	var fx, fy, fw, fh sql.NullInt64
	if fp := image.FocalPoint; fp != nil {
		fx = sql.NullInt64{Int64: int64(fp.X), Valid: true}
		fy = sql.NullInt64{Int64: int64(fp.Y), Valid: true}
		fw = sql.NullInt64{Int64: int64(fp.Width), Valid: true}
		fh = sql.NullInt64{Int64: int64(fp.Height), Valid: true}
	}
	if image.CreatedAt.IsZero() {
		return fmt.Errorf("image %q has no creation time", image.Title)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO images (title, filename, file, width, height, file_size, file_hash,
		focal_point_x, focal_point_y, focal_point_width, focal_point_height, uploaded_by_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		image.Title, image.Filename, image.File, image.Width, image.Height, image.FileSize, image.FileHash,
		fx, fy, fw, fh, nullInt(image.UploadedByUserID), toNanos(image.CreatedAt))
	if err != nil {
		return err
	}
	image.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDatabase) GetImage(ctx context.Context, id int64) (*Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "image", id)
	}
	return img, nil
}

func (s *SQLiteDatabase) queryImages(ctx context.Context, query string, args ...any) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteDatabase) ListImages(ctx context.Context) ([]*Image, error) {
	return s.queryImages(ctx, "SELECT "+imageColumns+" FROM images ORDER BY created_at DESC, id DESC")
}

func (s *SQLiteDatabase) FindImagesByHash(ctx context.Context, hash string) ([]*Image, error) {
	if hash == "" {
		return nil, nil
	}
	return s.queryImages(ctx, "SELECT "+imageColumns+" FROM images WHERE file_hash = ? ORDER BY id", hash)
}

func (s *SQLiteDatabase) DeleteImage(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM renditions WHERE image_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("image %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

const renditionColumns = "id, image_id, filter_spec, focal_point_key, file, width, height, format"

func scanRendition(row rowScanner) (*Rendition, error) {
	var r Rendition
	if err := row.Scan(&r.ID, &r.ImageID, &r.FilterSpec, &r.FocalPointKey, &r.File, &r.Width, &r.Height, &r.Format); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteDatabase) CreateRendition(ctx context.Context, rendition *Rendition) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO renditions (image_id, filter_spec, focal_point_key, file, width, height, format)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rendition.ImageID, rendition.FilterSpec, rendition.FocalPointKey, rendition.File, rendition.Width,
		rendition.Height, rendition.Format)
	if err != nil {
		return err
	}
	rendition.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDatabase) FindRendition(ctx context.Context, imageID int64, filterSpec, focalPointKey string) (*Rendition, error) {
	r, err := scanRendition(s.db.QueryRowContext(ctx, "SELECT "+renditionColumns+
		" FROM renditions WHERE image_id = ? AND filter_spec = ? AND focal_point_key = ?", imageID, filterSpec, focalPointKey))
	if err != nil {
		return nil, notFound(err, "rendition", filterSpec)
	}
	return r, nil
}

// UpdateRenditionFile overwrites the stored output of an existing rendition.
func (s *SQLiteDatabase) UpdateRenditionFile(ctx context.Context, rendition *Rendition) error {
	res, err := s.db.ExecContext(ctx, "UPDATE renditions SET file = ?, width = ?, height = ?, format = ? WHERE id = ?",
		rendition.File, rendition.Width, rendition.Height, rendition.Format, rendition.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rendition %d: %w", rendition.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) GetAllRenditions(ctx context.Context) ([]*Rendition, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+renditionColumns+" FROM renditions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var renditions []*Rendition
	for rows.Next() {
		r, err := scanRendition(rows)
		if err != nil {
			return nil, err
		}
		renditions = append(renditions, r)
	}
	return renditions, rows.Err()
}

func (s *SQLiteDatabase) DeleteRendition(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM renditions WHERE id = ?", id)
	return err
}

func (s *SQLiteDatabase) CountRenditions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM renditions").Scan(&n)
	return n, err
}
