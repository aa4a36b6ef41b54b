package imageprocessing

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const defaultJPEGQuality = 85

// DecodeOptions controls how vector sources are rasterized.
type DecodeOptions struct {
	// SVG fallback size is used when an SVG declares neither width/height
	// nor a viewBox.
	SVGFallbackWidth  int
	SVGFallbackHeight int
}

// IsSVG performs a lightweight detection of SVG content from raw bytes.
func IsSVG(data []byte) bool {
	n := min(len(data), 4096)
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg"))
}

// Decode reads any supported raster format or an SVG document. The returned
// format name is the one registered with the image package, or "svg".
func Decode(data []byte, opts DecodeOptions) (image.Image, string, error) {
	if IsSVG(data) {
		w, h, err := svgSize(data, opts)
		if err != nil {
			return nil, "", err
		}
		img, err := rasterizeSVG(data, w, h)
		if err != nil {
			return nil, "", err
		}
		return img, "svg", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DecodeConfig returns the dimensions of an image without decoding its pixels.
func DecodeConfig(data []byte, opts DecodeOptions) (width, height int, format string, err error) {
	if IsSVG(data) {
		w, h, err := svgSize(data, opts)
		return w, h, "svg", err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// svgSize reads the intrinsic size of an SVG from its root element.
func svgSize(data []byte, opts DecodeOptions) (int, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to parse SVG: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "svg" {
			continue
		}
		var w, h int
		var viewBox string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "width":
				w = leadingInt(attr.Value)
			case "height":
				h = leadingInt(attr.Value)
			case "viewBox":
				viewBox = attr.Value
			}
		}
		if w > 0 && h > 0 {
			return w, h, nil
		}
		if fields := strings.Fields(strings.ReplaceAll(viewBox, ",", " ")); len(fields) == 4 {
			vw, errW := strconv.ParseFloat(fields[2], 64)
			vh, errH := strconv.ParseFloat(fields[3], 64)
			if errW == nil && errH == nil && vw > 0 && vh > 0 {
				return int(vw + 0.5), int(vh + 0.5), nil
			}
		}
		break
	}
	if opts.SVGFallbackWidth <= 0 || opts.SVGFallbackHeight <= 0 {
		return 0, 0, fmt.Errorf("SVG has no intrinsic size and no fallback size is set")
	}
	slog.Debug("SVG lacks explicit size; using fallback",
		"width", opts.SVGFallbackWidth, "height", opts.SVGFallbackHeight)
	return opts.SVGFallbackWidth, opts.SVGFallbackHeight, nil
}

// leadingInt extracts the leading integer of a length such as "123px".
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// rasterizeSVG renders an SVG document onto a transparent canvas.
func rasterizeSVG(data []byte, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}

// applyTransform crops src to the transform's region and scales it to the
// output size.
func applyTransform(src image.Image, t Transform) image.Image {
	crop := t.Crop.imageRect().Add(src.Bounds().Min).Intersect(src.Bounds())
	if crop.Empty() {
		crop = src.Bounds()
	}
	if crop == src.Bounds() && crop.Dx() == t.Width && crop.Dy() == t.Height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return dst
}

// Encode writes img in the requested output format.
func Encode(img image.Image, format string, env *Env) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	case "jpeg":
		quality := defaultJPEGQuality
		if env != nil && env.JPEGQuality > 0 {
			quality = env.JPEGQuality
		}
		// JPEG has no alpha channel; transparent areas become white
		if hasAlpha(img) {
			img = flatten(img, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256, Drawer: xdraw.FloydSteinberg}); err != nil {
			return nil, fmt.Errorf("failed to encode GIF: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown output image format %q", format)
	}
	return buf.Bytes(), nil
}

// defaultOutputFormat maps a source format onto the format renditions are
// written in when no format operation is given.
func defaultOutputFormat(original string) string {
	switch original {
	case "jpeg":
		return "jpeg"
	default:
		// bmp, webp, tiff, gif and rasterized svg sources become png
		return "png"
	}
}
