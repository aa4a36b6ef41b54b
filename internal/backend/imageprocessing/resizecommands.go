package imageprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
)

// OriginalCommand keeps the image as it is.
type OriginalCommand struct{}

func newOriginalCommand(args []string) (Command, error) {
	if err := requireArgs(args, 0, 0); err != nil {
		return nil, err
	}
	return &OriginalCommand{}, nil
}

func (c *OriginalCommand) Name() string {
	return "original"
}

func (c *OriginalCommand) Transform(t Transform, _ *FocalPoint) (Transform, error) {
	return t, nil
}

// WidthHeightCommand scales the image down so one side does not exceed size,
// preserving the aspect ratio. Smaller images are left untouched.
type WidthHeightCommand struct {
	method string
	size   int
}

func newWidthHeightCommand(method string, args []string) (Command, error) {
	if err := requireArgs(args, 1, 1); err != nil {
		return nil, err
	}
	size, err := parsePositiveInt(args[0])
	if err != nil {
		return nil, err
	}
	return &WidthHeightCommand{method: method, size: size}, nil
}

func newWidthCommand(args []string) (Command, error) {
	return newWidthHeightCommand("width", args)
}

func newHeightCommand(args []string) (Command, error) {
	return newWidthHeightCommand("height", args)
}

func (c *WidthHeightCommand) Name() string {
	return c.method + "-" + strconv.Itoa(c.size)
}

func (c *WidthHeightCommand) Transform(t Transform, _ *FocalPoint) (Transform, error) {
	w, h := t.Width, t.Height
	switch c.method {
	case "width":
		if w <= c.size {
			return t, nil
		}
		scale := float64(c.size) / float64(w)
		return t.Resize(c.size, int(float64(h)*scale)), nil
	default:
		if h <= c.size {
			return t, nil
		}
		scale := float64(c.size) / float64(h)
		return t.Resize(int(float64(w)*scale), c.size), nil
	}
}

// MinMaxCommand fits the image inside (max) or around (min) a bounding box.
type MinMaxCommand struct {
	method string
	width  int
	height int
}

func newMinMaxCommand(method string, args []string) (Command, error) {
	if err := requireArgs(args, 1, 1); err != nil {
		return nil, err
	}
	w, h, err := parseSize(args[0])
	if err != nil {
		return nil, err
	}
	return &MinMaxCommand{method: method, width: w, height: h}, nil
}

func newMaxCommand(args []string) (Command, error) {
	return newMinMaxCommand("max", args)
}

func newMinCommand(args []string) (Command, error) {
	return newMinMaxCommand("min", args)
}

func (c *MinMaxCommand) Name() string {
	return fmt.Sprintf("%s-%dx%d", c.method, c.width, c.height)
}

func (c *MinMaxCommand) Transform(t Transform, _ *FocalPoint) (Transform, error) {
	w, h := float64(t.Width), float64(t.Height)
	horz := float64(c.width) / w
	vert := float64(c.height) / h

	if c.method == "min" {
		if t.Width <= c.width || t.Height <= c.height {
			return t, nil
		}
		if horz > vert {
			return t.Resize(c.width, int(h*horz)), nil
		}
		return t.Resize(int(w*vert), c.height), nil
	}

	if t.Width <= c.width && t.Height <= c.height {
		return t, nil
	}
	if horz < vert {
		return t.Resize(c.width, int(h*horz)), nil
	}
	slog.Debug("max: fitting to height", "width", t.Width, "height", t.Height, "target_height", c.height)
	return t.Resize(int(w*vert), c.height), nil
}

// ScaleCommand scales the image by a percentage.
type ScaleCommand struct {
	percent float64
}

func newScaleCommand(args []string) (Command, error) {
	if err := requireArgs(args, 1, 1); err != nil {
		return nil, err
	}
	percent, err := strconv.ParseFloat(args[0], 64)
	if err != nil || percent <= 0 {
		return nil, fmt.Errorf("invalid scale percentage %q", args[0])
	}
	return &ScaleCommand{percent: percent}, nil
}

func (c *ScaleCommand) Name() string {
	return "scale-" + strconv.FormatFloat(c.percent, 'f', -1, 64)
}

func (c *ScaleCommand) Transform(t Transform, _ *FocalPoint) (Transform, error) {
	scale := c.percent / 100
	return t.Resize(int(float64(t.Width)*scale), int(float64(t.Height)*scale)), nil
}
