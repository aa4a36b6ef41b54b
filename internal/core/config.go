package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/cache"
	"github.com/jo-hoe/cmsadmin/internal/embeds"
	"github.com/jo-hoe/cmsadmin/internal/images"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

// AdminConfig holds the settings of the admin views.
type AdminConfig struct {
	AllowUnicodeSlugs   bool `yaml:"allowUnicodeSlugs"`
	I18nEnabled         bool `yaml:"i18nEnabled"`
	WorkflowEnabled     bool `yaml:"workflowEnabled"`
	ListingPageSize     int  `yaml:"listingPageSize" validate:"min=0"`
	SubmissionsPageSize int  `yaml:"submissionsPageSize" validate:"min=0"`

	forms.DateSettings `yaml:",inline"`
}

type ServiceConfig struct {
	Port     int           `yaml:"port" validate:"min=0,max=65535"`
	LogLevel string        `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	Database Database      `yaml:"database"`
	Cache    cache.Config  `yaml:"cache"`
	Admin    AdminConfig   `yaml:"admin"`
	Images   images.Config `yaml:"images"`
	Embeds   embeds.Config `yaml:"embeds"`
}

// DefaultConfig is used for settings the config file leaves out.
func DefaultConfig() ServiceConfig {
	return ServiceConfig{
		Port:     8080,
		LogLevel: "info",
		Database: Database{Type: "sqlite", ConnectionString: "file:cms.db"},
		Admin: AdminConfig{
			AllowUnicodeSlugs: true,
			WorkflowEnabled:   true,
			DateSettings: forms.DateSettings{
				DateFormat:     forms.DefaultDateFormat,
				DateTimeFormat: forms.DefaultDateTimeFormat,
				TimeFormat:     forms.DefaultTimeFormat,
			},
		},
	}
}

var configValidator = validator.New()

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	config := DefaultConfig()
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return &config, nil
}

// Validate checks struct tags and the settings that depend on each other.
func (c *ServiceConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}
	if err := validateExtensions(c.Images.AllowedExtensions); err != nil {
		return fmt.Errorf("invalid images configuration: %w", err)
	}
	if (c.Images.SVGFallbackWidth == 0) != (c.Images.SVGFallbackHeight == 0) {
		return fmt.Errorf("svgFallbackWidth and svgFallbackHeight must be set together")
	}
	for i, p := range c.Embeds.Providers {
		if len(p.URLs) == 0 {
			return fmt.Errorf("embed provider at index %d (%s) has no url patterns", i, p.Endpoint)
		}
	}
	return nil
}

// validateExtensions ensures extensions are unique and given without a dot
func validateExtensions(extensions []string) error {
	seen := make(map[string]bool)
	for i, ext := range extensions {
		if ext == "" || strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension at index %d must be a non-empty name without a dot", i)
		}
		ext = strings.ToLower(ext)
		if seen[ext] {
			return fmt.Errorf("duplicate extension: %s", ext)
		}
		seen[ext] = true
	}
	return nil
}

// SlogLevel maps the configured log level to a slog level.
func (c *ServiceConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
