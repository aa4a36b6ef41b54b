package imageprocessing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func mustParse(t *testing.T, spec string) *Filter {
	t.Helper()
	f, err := ParseFilter(spec)
	if err != nil {
		t.Fatalf("ParseFilter(%q) error: %v", spec, err)
	}
	return f
}

func TestParseFilter(t *testing.T) {
	f := mustParse(t, "fill-100x100-c50|format-jpeg|jpegquality-40")
	var names []string
	for _, c := range f.Commands() {
		names = append(names, c.Name())
	}
	want := []string{"fill-100x100-c50", "format-jpeg", "jpegquality-40"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}

	for _, spec := range []string{"", "fill-100x100 ", "blur-5", "width-abc", "preserve-svg", "max-10x10|<b>"} {
		if _, err := ParseFilter(spec); !errors.Is(err, ErrInvalidFilterSpec) {
			t.Errorf("ParseFilter(%q) error = %v, want ErrInvalidFilterSpec", spec, err)
		}
	}

	f = mustParse(t, "preserve-svg|width-10")
	if len(f.Commands()) != 1 {
		t.Fatalf("preserve-svg should be dropped, got %d commands", len(f.Commands()))
	}
}

func TestExpandSpec(t *testing.T) {
	tests := []struct {
		spec string
		want []string
	}{
		{spec: "width-{100,200}", want: []string{"width-100", "width-200"}},
		{spec: "width-400", want: []string{"width-400"}},
		{spec: "width-{100,200}|format-{jpeg,png}", want: []string{
			"width-100|format-jpeg", "width-100|format-png",
			"width-200|format-jpeg", "width-200|format-png",
		}},
		{spec: "fill-{80x80,120x120}-c100 format-gif", want: []string{
			"fill-80x80-c100|format-gif", "fill-120x120-c100|format-gif",
		}},
	}
	for _, tt := range tests {
		got, err := ExpandSpec(tt.spec)
		if err != nil {
			t.Fatalf("ExpandSpec(%q) error: %v", tt.spec, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ExpandSpec(%q) mismatch (-want +got):\n%s", tt.spec, diff)
		}
	}

	if _, err := ExpandSpec("width-{100,200"); err == nil {
		t.Error("expected error for unbalanced braces")
	}
}

func TestFilterSize(t *testing.T) {
	tests := []struct {
		spec          string
		width, height int
	}{
		{"original", 400, 200},
		{"width-100", 100, 50},
		{"width-800", 400, 200},
		{"height-100", 200, 100},
		{"height-300", 400, 200},
		{"max-100x100", 100, 50},
		{"max-1000x1000", 400, 200},
		{"min-100x100", 200, 100},
		{"min-500x100", 400, 200},
		{"scale-50", 200, 100},
		{"fill-100x100", 100, 100},
		{"fill-800x100", 400, 50},
		{"width-200|fill-50x50", 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			w, h, err := mustParse(t, tt.spec).Size(400, 200, nil)
			if err != nil {
				t.Fatalf("Size error: %v", err)
			}
			if w != tt.width || h != tt.height {
				t.Fatalf("Size(%s) = %dx%d, want %dx%d", tt.spec, w, h, tt.width, tt.height)
			}
		})
	}
}

func TestFillCommand_FocalPoint(t *testing.T) {
	focal := &FocalPoint{X: 350, Y: 100, Width: 50, Height: 50}

	cmd, err := newFillCommand([]string{"100x100"})
	if err != nil {
		t.Fatalf("newFillCommand error: %v", err)
	}
	tr, err := cmd.(TransformCommand).Transform(NewTransform(400, 200), focal)
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	if tr.Crop.Left != 175 || tr.Crop.Right != 375 || tr.Width != 100 || tr.Height != 100 {
		t.Fatalf("unexpected transform without closeness: %+v", tr)
	}

	cmd, err = newFillCommand([]string{"100x100", "c100"})
	if err != nil {
		t.Fatalf("newFillCommand error: %v", err)
	}
	tr, err = cmd.(TransformCommand).Transform(NewTransform(400, 200), focal)
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	want := Rect{Left: 275, Top: 50, Right: 375, Bottom: 150}
	if diff := cmp.Diff(want, tr.Crop); diff != "" {
		t.Fatalf("crop mismatch (-want +got):\n%s", diff)
	}
	if tr.Width != 100 || tr.Height != 100 {
		t.Fatalf("unexpected output size %dx%d", tr.Width, tr.Height)
	}
}

func TestFilterCacheKey(t *testing.T) {
	if key := mustParse(t, "width-100").CacheKey(nil); key != "" {
		t.Fatalf("width filter cache key = %q, want empty", key)
	}
	fill := mustParse(t, "fill-100x100")
	plain := fill.CacheKey(nil)
	focused := fill.CacheKey(&FocalPoint{X: 1, Y: 2, Width: 3, Height: 4})
	if len(plain) != 8 || len(focused) != 8 {
		t.Fatalf("cache keys must be 8 hex characters: %q %q", plain, focused)
	}
	if plain == focused {
		t.Fatal("cache key must vary with the focal point")
	}
}

func TestFilterRun(t *testing.T) {
	source := newTestPNG(t, 400, 200, color.RGBA{R: 200, A: 255})

	res, err := mustParse(t, "max-100x100").Run(source, nil, DecodeOptions{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Format != "png" || res.Width != 100 || res.Height != 50 {
		t.Fatalf("unexpected result %s %dx%d", res.Format, res.Width, res.Height)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("encoded size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFilterRun_JPEGFlattensAlpha(t *testing.T) {
	source := newTestPNG(t, 20, 20, color.RGBA{})

	res, err := mustParse(t, "format-jpeg|jpegquality-90").Run(source, nil, DecodeOptions{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("transparent pixel should become white, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestFilterRun_BackgroundColor(t *testing.T) {
	source := newTestPNG(t, 4, 4, color.RGBA{})

	res, err := mustParse(t, "bgcolor-00ff00").Run(source, nil, DecodeOptions{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("png.Decode error: %v", err)
	}
	if got := color.RGBAModel.Convert(img.At(1, 1)).(color.RGBA); got != (color.RGBA{G: 255, A: 255}) {
		t.Fatalf("pixel = %+v, want opaque green", got)
	}
}

func TestFilterRun_SVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 100"><rect width="200" height="100" fill="#ff0000"/></svg>`)

	res, err := mustParse(t, "width-50").Run(svg, nil, DecodeOptions{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Format != "png" || res.Width != 50 || res.Height != 25 {
		t.Fatalf("unexpected result %s %dx%d", res.Format, res.Width, res.Height)
	}

	noSize := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><circle r="5"/></svg>`)
	if _, err := mustParse(t, "original").Run(noSize, nil, DecodeOptions{}); err == nil {
		t.Fatal("expected error for SVG without size and fallback")
	}
	w, h, format, err := DecodeConfig(noSize, DecodeOptions{SVGFallbackWidth: 80, SVGFallbackHeight: 60})
	if err != nil || w != 80 || h != 60 || format != "svg" {
		t.Fatalf("DecodeConfig = %d %d %q %v", w, h, format, err)
	}
}

func TestParallelForStop(t *testing.T) {
	if parallelForStop(0, func(int) bool { return true }) {
		t.Fatal("no work must report false")
	}
	if !parallelForStop(100, func(y int) bool { return y == 42 }) {
		t.Fatal("expected early stop to be reported")
	}
	hits := make([]bool, 50)
	parallelFor(len(hits), func(y int) { hits[y] = true })
	for i, hit := range hits {
		if !hit {
			t.Fatalf("row %d not visited", i)
		}
	}
}
