package imageprocessing

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strconv"
)

// ErrInvalidFilterSpec is returned for specs naming unknown operations or
// carrying malformed arguments.
var ErrInvalidFilterSpec = errors.New("invalid filter spec")

// Command is a single operation of a filter spec, such as "fill-100x100".
type Command interface {
	Name() string
}

// TransformCommand changes which part of the source is kept and the size it
// is scaled to. Transform commands never touch pixels.
type TransformCommand interface {
	Command
	Transform(t Transform, focal *FocalPoint) (Transform, error)
}

// ImageCommand runs on the decoded pixels after all transforms were applied.
// It may replace the image and record output options in env.
type ImageCommand interface {
	Command
	Execute(img image.Image, env *Env) (image.Image, error)
}

// varyingCommand is implemented by commands whose output depends on image
// attributes besides the pixels, so renditions must be keyed by them.
type varyingCommand interface {
	VaryFields() []string
}

// Env carries output options set by image commands.
type Env struct {
	OriginalFormat string
	OutputFormat   string
	Lossless       bool
	JPEGQuality    int
}

// CommandFactory is a function type that creates a command from the dash
// separated arguments following the operation name
type CommandFactory func(args []string) (Command, error)

// CommandRegistry manages the registration and creation of filter operations
type CommandRegistry struct {
	factories map[string]CommandFactory
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		factories: make(map[string]CommandFactory),
	}
}

// Register adds a command factory to the registry
func (r *CommandRegistry) Register(name string, factory CommandFactory) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("command factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a command by name with the given arguments
func (r *CommandRegistry) Create(name string, args []string) (Command, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("%w: unrecognised operation: %s", ErrInvalidFilterSpec, name)
	}

	command, err := factory(args)
	if err != nil {
		if errors.Is(err, ErrInvalidFilterSpec) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilterSpec, name, err)
	}

	return command, nil
}

// IsRegistered checks if a command with the given name is registered
func (r *CommandRegistry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// GetRegisteredNames returns the sorted names of all registered commands
func (r *CommandRegistry) GetRegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is a global registry instance with the built-in operations pre-registered
var DefaultRegistry = NewCommandRegistry()

func mustRegister(name string, factory CommandFactory) {
	if err := DefaultRegistry.Register(name, factory); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", name, err))
	}
}

func init() {
	mustRegister("original", newOriginalCommand)
	mustRegister("width", newWidthCommand)
	mustRegister("height", newHeightCommand)
	mustRegister("max", newMaxCommand)
	mustRegister("min", newMinCommand)
	mustRegister("scale", newScaleCommand)
	mustRegister("fill", newFillCommand)
	mustRegister("format", newFormatCommand)
	mustRegister("jpegquality", newJPEGQualityCommand)
	mustRegister("bgcolor", newBackgroundColorCommand)
}

// requireArgs checks the number of arguments of an operation
func requireArgs(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("expected %d arguments, got %d", min, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

// parsePositiveInt parses a strictly positive integer argument
func parsePositiveInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("value must be positive, got %d", v)
	}
	return v, nil
}

// parseSize parses a "WIDTHxHEIGHT" argument
func parseSize(s string) (int, int, error) {
	var w, h string
	for i := 0; i < len(s); i++ {
		if s[i] == 'x' {
			w, h = s[:i], s[i+1:]
			break
		}
	}
	if w == "" || h == "" {
		return 0, 0, fmt.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	width, err := parsePositiveInt(w)
	if err != nil {
		return 0, 0, err
	}
	height, err := parsePositiveInt(h)
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}
