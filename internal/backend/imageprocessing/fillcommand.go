package imageprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// FillCommand crops the image to the aspect ratio of the target size and
// scales it down to that size. The crop is positioned around the focal
// point; a crop closeness above zero ("-c50") zooms towards it.
type FillCommand struct {
	width          int
	height         int
	cropCloseness  float64
	closenessGiven bool
}

func newFillCommand(args []string) (Command, error) {
	if err := requireArgs(args, 1, 2); err != nil {
		return nil, err
	}
	w, h, err := parseSize(args[0])
	if err != nil {
		return nil, err
	}
	cmd := &FillCommand{width: w, height: h}
	if len(args) == 2 {
		arg := args[1]
		if !strings.HasPrefix(arg, "c") {
			return nil, fmt.Errorf("unrecognised fill argument %q", arg)
		}
		closeness, err := strconv.Atoi(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid crop closeness %q", arg)
		}
		cmd.cropCloseness = min(max(float64(closeness)/100, 0), 1)
		cmd.closenessGiven = true
	}
	return cmd, nil
}

func (c *FillCommand) Name() string {
	name := fmt.Sprintf("fill-%dx%d", c.width, c.height)
	if c.closenessGiven {
		name += fmt.Sprintf("-c%d", int(c.cropCloseness*100))
	}
	return name
}

func (c *FillCommand) VaryFields() []string {
	return []string{"focal_point_width", "focal_point_height", "focal_point_x", "focal_point_y"}
}

func (c *FillCommand) Transform(t Transform, focal *FocalPoint) (Transform, error) {
	imageWidth := float64(t.Width)
	imageHeight := float64(t.Height)
	targetWidth := float64(c.width)
	targetHeight := float64(c.height)

	var fp *Rect
	if focal != nil {
		r := t.ToOutput(focal.Rect())
		fp = &r
	}

	aspect := targetWidth / targetHeight

	cropMaxScale := min(imageWidth, imageHeight*aspect)
	cropMaxWidth := cropMaxScale
	cropMaxHeight := cropMaxScale / aspect

	cropWidth := cropMaxWidth
	cropHeight := cropMaxHeight

	if fp != nil {
		cropMinScale := max(fp.Width(), fp.Height()*aspect)
		cropMinWidth := cropMinScale
		cropMinHeight := cropMinScale / aspect

		// a focal point larger than the image leaves nothing to zoom into
		if cropMinScale < cropMaxScale {
			// never zoom so far that the result would have to be upscaled
			maxCloseness := max(
				1-(targetWidth-cropMinWidth)/(cropMaxWidth-cropMinWidth),
				1-(targetHeight-cropMinHeight)/(cropMaxHeight-cropMinHeight),
			)
			closeness := min(c.cropCloseness, maxCloseness)
			if closeness >= 0 && closeness <= 1 {
				cropWidth = cropMaxWidth + (cropMinWidth-cropMaxWidth)*closeness
				cropHeight = cropMaxHeight + (cropMinHeight-cropMaxHeight)*closeness
			}
		}
	}

	var fpX, fpY float64
	if fp != nil {
		fpX, fpY = fp.Centroid()
	} else {
		fpX, fpY = imageWidth/2, imageHeight/2
	}
	fpU := fpX / imageWidth
	fpV := fpY / imageHeight

	cropX := fpX - (fpU-0.5)*cropWidth
	cropY := fpY - (fpV-0.5)*cropHeight

	rect := RectFromPoint(cropX, cropY, cropWidth, cropHeight)
	if fp != nil {
		rect = rect.MoveToCover(*fp)
	}
	rect = rect.MoveToClamp(Rect{Right: imageWidth, Bottom: imageHeight}).Round()

	slog.Debug("fill: computed crop",
		"left", rect.Left, "top", rect.Top, "width", rect.Width(), "height", rect.Height(),
		"has_focal_point", fp != nil)

	t = t.CropTo(rect)
	if scale := targetWidth / float64(t.Width); scale < 1.0 {
		t = t.Resize(c.width, c.height)
	}
	return t, nil
}
