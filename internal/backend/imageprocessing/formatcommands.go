package imageprocessing

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

var outputFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
}

// FormatCommand selects the output encoding of a rendition.
type FormatCommand struct {
	format   string
	lossless bool
}

func newFormatCommand(args []string) (Command, error) {
	if err := requireArgs(args, 1, 2); err != nil {
		return nil, err
	}
	format := args[0]
	if format == "jpg" {
		format = "jpeg"
	}
	if !outputFormats[format] {
		return nil, fmt.Errorf("unsupported output format %q", args[0])
	}
	cmd := &FormatCommand{format: format}
	if len(args) == 2 {
		if args[1] != "lossless" {
			return nil, fmt.Errorf("unrecognised format option %q", args[1])
		}
		cmd.lossless = true
	}
	return cmd, nil
}

func (c *FormatCommand) Name() string {
	if c.lossless {
		return "format-" + c.format + "-lossless"
	}
	return "format-" + c.format
}

func (c *FormatCommand) Execute(img image.Image, env *Env) (image.Image, error) {
	env.OutputFormat = c.format
	env.Lossless = c.lossless
	return img, nil
}

// JPEGQualityCommand sets the quality used when the output is JPEG.
type JPEGQualityCommand struct {
	quality int
}

func newJPEGQualityCommand(args []string) (Command, error) {
	if err := requireArgs(args, 1, 1); err != nil {
		return nil, err
	}
	quality, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid jpeg quality %q", args[0])
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", quality)
	}
	return &JPEGQualityCommand{quality: quality}, nil
}

func (c *JPEGQualityCommand) Name() string {
	return "jpegquality-" + strconv.Itoa(c.quality)
}

func (c *JPEGQualityCommand) Execute(img image.Image, env *Env) (image.Image, error) {
	env.JPEGQuality = c.quality
	return img, nil
}

// BackgroundColorCommand flattens transparent areas onto a solid colour.
type BackgroundColorCommand struct {
	color color.RGBA
}

func newBackgroundColorCommand(args []string) (Command, error) {
	if err := requireArgs(args, 1, 1); err != nil {
		return nil, err
	}
	c, err := parseHexColor(args[0])
	if err != nil {
		return nil, err
	}
	return &BackgroundColorCommand{color: c}, nil
}

func (c *BackgroundColorCommand) Name() string {
	return fmt.Sprintf("bgcolor-%02x%02x%02x", c.color.R, c.color.G, c.color.B)
}

func (c *BackgroundColorCommand) Execute(img image.Image, _ *Env) (image.Image, error) {
	return flatten(img, c.color), nil
}

// parseHexColor accepts "rgb" and "rrggbb" hex colours.
func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// hasAlpha reports whether any pixel of img is not fully opaque.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	return parallelForStop(b.Dy(), func(y int) bool {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, b.Min.Y+y).RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	})
}

// flatten composites img over an opaque background.
func flatten(img image.Image, bg color.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	br, bgG, bb := uint32(bg.R)*0x101, uint32(bg.G)*0x101, uint32(bg.B)*0x101
	parallelFor(b.Dy(), func(y int) {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			inv := 0xffff - a
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8((r + br*inv/0xffff) >> 8),
				G: uint8((g + bgG*inv/0xffff) >> 8),
				B: uint8((bl + bb*inv/0xffff) >> 8),
				A: 0xff,
			})
		}
	})
	return dst
}
