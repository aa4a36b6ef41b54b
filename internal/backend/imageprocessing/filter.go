package imageprocessing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	specPattern          = regexp.MustCompile(`^[A-Za-z0-9_\-\.\|]+$`)
	expandingSpecPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.{},\| ]+$`)
)

// preserveSVG is accepted in specs for compatibility; SVG sources are always
// rasterized so the directive is dropped.
const preserveSVG = "preserve-svg"

// Filter is a parsed filter spec such as "fill-200x200|format-jpeg".
// Operations are separated by "|" and their arguments by "-".
type Filter struct {
	Spec     string
	commands []Command
}

// ParseFilter validates spec against the registry and builds its commands.
func ParseFilter(spec string) (*Filter, error) {
	return ParseFilterWithRegistry(spec, DefaultRegistry)
}

func ParseFilterWithRegistry(spec string, registry *CommandRegistry) (*Filter, error) {
	if !specPattern.MatchString(spec) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilterSpec, spec)
	}

	var parts []string
	for _, op := range strings.Split(spec, "|") {
		if op != preserveSVG {
			parts = append(parts, op)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: filter should include at least one operation other than %q", ErrInvalidFilterSpec, preserveSVG)
	}

	commands := make([]Command, 0, len(parts))
	for _, op := range parts {
		args := strings.Split(op, "-")
		command, err := registry.Create(args[0], args[1:])
		if err != nil {
			return nil, err
		}
		commands = append(commands, command)
	}
	return &Filter{Spec: spec, commands: commands}, nil
}

// ExpandSpec turns a spec with brace expansions into the list of specs it
// stands for: "width-{100,200}" becomes "width-100" and "width-200". Segments
// are separated by "|" or, when there is none, by spaces; the result is the
// cartesian product of the expanded segments, joined with "|".
func ExpandSpec(spec string) ([]string, error) {
	if !expandingSpecPattern.MatchString(spec) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilterSpec, spec)
	}
	separator := " "
	if strings.Contains(spec, "|") {
		separator = "|"
	}
	var segments []string
	for _, s := range strings.Split(spec, separator) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return ExpandSegments(segments)
}

// ExpandSegments expands already split spec segments.
func ExpandSegments(segments []string) ([]string, error) {
	combinations := [][]string{{}}
	for _, segment := range segments {
		options, err := expandSegment(segment)
		if err != nil {
			return nil, err
		}
		next := make([][]string, 0, len(combinations)*len(options))
		for _, combination := range combinations {
			for _, option := range options {
				c := append(append([]string(nil), combination...), option)
				next = append(next, c)
			}
		}
		combinations = next
	}

	specs := make([]string, 0, len(combinations))
	for _, c := range combinations {
		specs = append(specs, strings.Join(c, "|"))
	}
	return specs, nil
}

func expandSegment(segment string) ([]string, error) {
	open := strings.Index(segment, "{")
	end := strings.Index(segment, "}")
	if open < 0 && end < 0 {
		return []string{segment}, nil
	}
	if open < 0 || end < open || strings.Count(segment, "{") != 1 || strings.Count(segment, "}") != 1 {
		return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidFilterSpec, segment)
	}
	prefix, suffix := segment[:open], segment[end+1:]
	var out []string
	for _, option := range strings.Split(segment[open+1:end], ",") {
		out = append(out, prefix+option+suffix)
	}
	return out, nil
}

// Commands returns the parsed operations in spec order.
func (f *Filter) Commands() []Command {
	return f.commands
}

// CacheKey identifies the image attributes a rendition depends on. It is
// empty when no operation varies with them.
func (f *Filter) CacheKey(focal *FocalPoint) string {
	var parts []string
	for _, command := range f.commands {
		v, ok := command.(varyingCommand)
		if !ok {
			continue
		}
		for _, field := range v.VaryFields() {
			parts = append(parts, focalPointField(focal, field))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])[:8]
}

func focalPointField(focal *FocalPoint, field string) string {
	if focal == nil {
		return "None"
	}
	switch field {
	case "focal_point_x":
		return strconv.Itoa(focal.X)
	case "focal_point_y":
		return strconv.Itoa(focal.Y)
	case "focal_point_width":
		return strconv.Itoa(focal.Width)
	case "focal_point_height":
		return strconv.Itoa(focal.Height)
	}
	return ""
}

// Size computes the output dimensions for a source of the given size without
// touching pixels.
func (f *Filter) Size(width, height int, focal *FocalPoint) (int, int, error) {
	t, err := NewCommandInvoker(f.commands).Transform(width, height, focal)
	if err != nil {
		return 0, 0, err
	}
	return t.Width, t.Height, nil
}

// Result is an encoded rendition.
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Run decodes source, applies the filter and encodes the output.
func (f *Filter) Run(source []byte, focal *FocalPoint, opts DecodeOptions) (*Result, error) {
	start := time.Now()

	img, originalFormat, err := Decode(source, opts)
	if err != nil {
		return nil, err
	}

	env := &Env{OriginalFormat: originalFormat}
	out, err := NewCommandInvoker(f.commands).Execute(img, focal, env)
	if err != nil {
		return nil, err
	}

	format := env.OutputFormat
	if format == "" {
		format = defaultOutputFormat(originalFormat)
	}
	data, err := Encode(out, format, env)
	if err != nil {
		return nil, err
	}

	slog.Info("rendered filter",
		"spec", f.Spec,
		"original_format", originalFormat,
		"output_format", format,
		"width", out.Bounds().Dx(),
		"height", out.Bounds().Dy(),
		"output_size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Data:   data,
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
		Format: format,
	}, nil
}
