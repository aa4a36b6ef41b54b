package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"
	"time"
)

// CommandInvoker runs the commands of a filter against a decoded image:
// transform commands first, in order, then image commands.
type CommandInvoker struct {
	commands []Command
}

// NewCommandInvoker creates a new command invoker
func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// Transform folds every transform command over the initial geometry of the source.
func (i *CommandInvoker) Transform(width, height int, focal *FocalPoint) (Transform, error) {
	t := NewTransform(width, height)
	for idx, command := range i.commands {
		tc, ok := command.(TransformCommand)
		if !ok {
			continue
		}
		next, err := tc.Transform(t, focal)
		if err != nil {
			return Transform{}, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}
		t = next
	}
	return t, nil
}

// Execute applies all commands to img and returns the result with the
// output options collected in env.
func (i *CommandInvoker) Execute(img image.Image, focal *FocalPoint, env *Env) (image.Image, error) {
	start := time.Now()
	bounds := img.Bounds()

	slog.Debug("starting image processing pipeline",
		"command_count", len(i.commands),
		"input_width", bounds.Dx(),
		"input_height", bounds.Dy())

	if len(i.commands) == 0 {
		slog.Debug("no commands to execute, returning original image")
		return img, nil
	}

	t, err := i.Transform(bounds.Dx(), bounds.Dy(), focal)
	if err != nil {
		slog.Error("transform failed", "error", err)
		return nil, err
	}
	img = applyTransform(img, t)

	for idx, command := range i.commands {
		ic, ok := command.(ImageCommand)
		if !ok {
			continue
		}
		commandStart := time.Now()

		processed, err := ic.Execute(img, env)
		if err != nil {
			slog.Error("command execution failed",
				"index", idx,
				"command_name", command.Name(),
				"error", err)
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("command completed",
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(commandStart).Milliseconds())

		img = processed
	}

	slog.Debug("image processing pipeline completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands),
		"output_width", img.Bounds().Dx(),
		"output_height", img.Bounds().Dy())

	return img, nil
}
