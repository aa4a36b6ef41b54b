package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/cache"
)

func newTestService(t *testing.T) (*RenditionService, database.DatabaseService, *miniredis.Miniredis) {
	t.Helper()
	db, err := database.NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(context.Background(), cache.Config{Address: mr.Addr(), Prefix: "cms:"})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return NewRenditionService(db, c, Config{MaxUploadSize: 1 << 20}), db, mr
}

func newTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func uploadTestImage(t *testing.T, svc *RenditionService, title string) *database.Image {
	t.Helper()
	res, err := svc.CreateImage(context.Background(), title, title+".png", newTestPNG(t, 200, 100), nil)
	if err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}
	return res.Image
}

func TestGetRendition_CreatesOnce(t *testing.T) {
	svc, db, mr := newTestService(t)
	ctx := context.Background()
	img := uploadTestImage(t, svc, "Test")

	first, err := svc.GetRendition(ctx, img, "width-100")
	if err != nil {
		t.Fatalf("GetRendition error: %v", err)
	}
	if first.Width != 100 || first.Height != 50 || first.Format != "png" {
		t.Fatalf("unexpected rendition %dx%d %s", first.Width, first.Height, first.Format)
	}
	if !mr.Exists("cms:" + renditionCacheKey(img, "", "width-100")) {
		t.Fatalf("expected rendition to be cached, keys: %v", mr.Keys())
	}

	mr.FlushAll()
	second, err := svc.GetRendition(ctx, img, "width-100")
	if err != nil {
		t.Fatalf("GetRendition error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stored rendition %d, got %d", first.ID, second.ID)
	}
	if n, _ := db.CountRenditions(ctx); n != 1 {
		t.Fatalf("CountRenditions = %d, want 1", n)
	}

	if _, err := svc.GetRendition(ctx, img, "blur-5"); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestGetRendition_FocalPointVariesKey(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	img := uploadTestImage(t, svc, "Focal")

	if _, err := svc.GetRendition(ctx, img, "fill-50x50"); err != nil {
		t.Fatalf("GetRendition error: %v", err)
	}
	img.FocalPoint = &database.FocalPoint{X: 150, Y: 50, Width: 20, Height: 20}
	r, err := svc.GetRendition(ctx, img, "fill-50x50")
	if err != nil {
		t.Fatalf("GetRendition error: %v", err)
	}
	if r.Width != 50 || r.Height != 50 {
		t.Fatalf("unexpected size %dx%d", r.Width, r.Height)
	}
	if n, _ := db.CountRenditions(ctx); n != 2 {
		t.Fatalf("CountRenditions = %d, want 2", n)
	}
}

func TestGetRenditions(t *testing.T) {
	svc, _, _ := newTestService(t)
	img := uploadTestImage(t, svc, "Multi")

	got, err := svc.GetRenditions(context.Background(), img, "width-{40,80}", "max-10x10")
	if err != nil {
		t.Fatalf("GetRenditions error: %v", err)
	}
	widths := map[string]int{}
	for spec, r := range got {
		widths[spec] = r.Width
	}
	want := map[string]int{"width-40": 40, "width-80": 80, "max-10x10": 10}
	if diff := cmp.Diff(want, widths); diff != "" {
		t.Fatalf("widths mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateImage_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	data := newTestPNG(t, 10, 10)

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{name: "extension", filename: "notes.txt", data: data, want: ErrInvalidExtension},
		{name: "size", filename: "big.png", data: make([]byte, 2<<20), want: ErrFileTooLarge},
		{name: "garbage", filename: "fake.png", data: []byte("not an image"), want: ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateImage(ctx, "", tt.filename, tt.data, nil); !errors.Is(err, tt.want) {
				t.Fatalf("CreateImage error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateImage_Duplicates(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	data := newTestPNG(t, 30, 20)
	user := &database.User{Username: "editor", IsActive: true}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	first, err := svc.CreateImage(ctx, "", "Holiday.PNG", data, &user.ID)
	if err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}
	if first.IsDuplicate() {
		t.Fatal("first upload must not be a duplicate")
	}
	if first.Image.Title != "Holiday" || first.Image.Width != 30 || first.Image.Height != 20 {
		t.Fatalf("unexpected image %+v", first.Image)
	}
	if first.Image.UploadedByUserID == nil || *first.Image.UploadedByUserID != user.ID {
		t.Fatalf("uploader not recorded: %v", first.Image.UploadedByUserID)
	}
	if first.Image.FileHash != FileHash(data) || len(first.Image.FileHash) != 40 {
		t.Fatalf("unexpected hash %q", first.Image.FileHash)
	}

	second, err := svc.CreateImage(ctx, "Copy", "copy.png", data, nil)
	if err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}
	if !second.IsDuplicate() || second.Duplicates[0].ID != first.Image.ID {
		t.Fatalf("expected duplicate of %d, got %+v", first.Image.ID, second.Duplicates)
	}
}

func TestDeleteImage_PurgesCache(t *testing.T) {
	svc, db, mr := newTestService(t)
	ctx := context.Background()
	img := uploadTestImage(t, svc, "Gone")

	if _, err := svc.GetRendition(ctx, img, "width-20"); err != nil {
		t.Fatalf("GetRendition error: %v", err)
	}
	if err := svc.DeleteImage(ctx, img.ID); err != nil {
		t.Fatalf("DeleteImage error: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected empty cache, got %v", mr.Keys())
	}
	if _, err := db.GetImage(ctx, img.ID); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("GetImage error = %v, want ErrNotFound", err)
	}
}

func TestUpdateRenditions(t *testing.T) {
	tests := []struct {
		name      string
		opts      UpdateOptions
		wantOut   string
		wantCount int
	}{
		{
			name:      "regenerate",
			opts:      UpdateOptions{},
			wantOut:   "\x1b[32;1mSuccessfully regenerated 2 image renditions!\x1b[0m\n",
			wantCount: 2,
		},
		{
			name:      "purge",
			opts:      UpdateOptions{Purge: true},
			wantOut:   "\x1b[32;1mSuccessfully purged and regenerated 2 image renditions!\x1b[0m\n",
			wantCount: 2,
		},
		{
			name:      "purge wins over purge-only",
			opts:      UpdateOptions{Purge: true, PurgeOnly: true, NoColor: true},
			wantOut:   "Successfully purged and regenerated 2 image renditions!\n",
			wantCount: 2,
		},
		{
			name:      "purge only",
			opts:      UpdateOptions{PurgeOnly: true, NoColor: true},
			wantOut:   "Successfully purged 2 image renditions!\n",
			wantCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestService(t)
			ctx := context.Background()
			img := uploadTestImage(t, svc, "Test")
			if _, err := svc.GetRenditions(ctx, img, "width-{10,20}"); err != nil {
				t.Fatalf("GetRenditions error: %v", err)
			}

			var stdout, stderr bytes.Buffer
			if err := svc.UpdateRenditions(ctx, tt.opts, &stdout, &stderr); err != nil {
				t.Fatalf("UpdateRenditions error: %v", err)
			}
			if diff := cmp.Diff(tt.wantOut, stdout.String()); diff != "" {
				t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
			}
			if stderr.Len() != 0 {
				t.Fatalf("unexpected stderr %q", stderr.String())
			}
			if n, _ := db.CountRenditions(ctx); n != tt.wantCount {
				t.Fatalf("CountRenditions = %d, want %d", n, tt.wantCount)
			}
		})
	}
}

func TestUpdateRenditions_Empty(t *testing.T) {
	tests := []struct {
		name string
		opts UpdateOptions
	}{
		{"regenerate", UpdateOptions{}},
		{"purge", UpdateOptions{Purge: true}},
		{"purge only", UpdateOptions{PurgeOnly: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestService(t)
			ctx := context.Background()
			var stdout, stderr bytes.Buffer
			if err := svc.UpdateRenditions(ctx, tt.opts, &stdout, &stderr); err != nil {
				t.Fatalf("UpdateRenditions error: %v", err)
			}
			if stdout.String() != "No image renditions found!\n" {
				t.Fatalf("stdout = %q", stdout.String())
			}
			if stderr.Len() != 0 {
				t.Fatalf("unexpected stderr %q", stderr.String())
			}
			if n, _ := db.CountRenditions(ctx); n != 0 {
				t.Fatalf("CountRenditions = %d, want 0", n)
			}
		})
	}
}

// failingDeleteDB refuses to delete one rendition.
type failingDeleteDB struct {
	database.DatabaseService
	failID int64
}

func (f *failingDeleteDB) DeleteRendition(ctx context.Context, id int64) error {
	if id == f.failID {
		return errors.New("rendition is locked")
	}
	return f.DatabaseService.DeleteRendition(ctx, id)
}

func TestUpdateRenditions_ReportsFailures(t *testing.T) {
	tests := []struct {
		name       string
		opts       UpdateOptions
		failDelete bool
		wantOut    string
		wantErr    string
		wantCount  int
	}{
		{
			name:      "regenerate",
			opts:      UpdateOptions{NoColor: true},
			wantOut:   "Successfully regenerated 1 image renditions!\n",
			wantErr:   "Could not regenerate rendition for Broken\n",
			wantCount: 2,
		},
		{
			name:      "purge",
			opts:      UpdateOptions{Purge: true, NoColor: true},
			wantOut:   "Successfully purged and regenerated 1 image renditions!\n",
			wantErr:   "Could not purge and regenerate rendition for Broken\n",
			wantCount: 1,
		},
		{
			name:       "purge only",
			opts:       UpdateOptions{PurgeOnly: true, NoColor: true},
			failDelete: true,
			wantOut:    "Successfully purged 1 image renditions!\n",
			wantErr:    "Could not purge rendition for Broken\n",
			wantCount:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestService(t)
			ctx := context.Background()
			img := uploadTestImage(t, svc, "Broken")
			bad := &database.Rendition{ImageID: img.ID, FilterSpec: "blur-5", File: []byte("x"), Width: 1, Height: 1, Format: "png"}
			if err := db.CreateRendition(ctx, bad); err != nil {
				t.Fatalf("CreateRendition error: %v", err)
			}
			if _, err := svc.GetRendition(ctx, img, "width-10"); err != nil {
				t.Fatalf("GetRendition error: %v", err)
			}
			if tt.failDelete {
				svc = NewRenditionService(&failingDeleteDB{DatabaseService: db, failID: bad.ID}, svc.cache, svc.config)
			}

			var stdout, stderr bytes.Buffer
			if err := svc.UpdateRenditions(ctx, tt.opts, &stdout, &stderr); err != nil {
				t.Fatalf("UpdateRenditions error: %v", err)
			}
			if diff := cmp.Diff(tt.wantErr, stderr.String()); diff != "" {
				t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantOut, stdout.String()); diff != "" {
				t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
			}
			if n, _ := db.CountRenditions(ctx); n != tt.wantCount {
				t.Fatalf("CountRenditions = %d, want %d", n, tt.wantCount)
			}
		})
	}
}
