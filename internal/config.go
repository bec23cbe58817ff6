package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/storage"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Content   ContentConfig     `yaml:"content"`
	Output    OutputConfig      `yaml:"output"`
	Render    RenderConfig      `yaml:"render"`
	Limits    LimitsConfig      `yaml:"limits"`
	Tokenizer TokenizerConfig   `yaml:"tokenizer"`
	Serve     ServeConfig       `yaml:"serve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.Content, &c.Output, &c.Render, &c.Limits, &c.Tokenizer, &c.Serve} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.checkOutputPlacement()
}

// checkOutputPlacement rejects an output directory that would clear a
// content root. Output below a root is allowed; the build skips it.
func (c *Config) checkOutputPlacement() error {
	out, err := filepath.Abs(c.Output.Path)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	for _, root := range c.Content.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("content: %w", err)
		}
		if abs == out || strings.HasPrefix(abs, out+string(filepath.Separator)) {
			return fmt.Errorf("output: path %s contains content root %s", c.Output.Path, root)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ContentConfig lists the content roots.
type ContentConfig struct {
	Roots []string `yaml:"roots"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Roots, validation.Required, validation.Each(validation.Required)),
	)
}

// OutputConfig holds the output location.
type OutputConfig struct {
	Path string `yaml:"path"`
	// CollectDocuments moves every document under /post/.
	CollectDocuments bool `yaml:"collect_documents"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	if filepath.Clean(c.Path) == "/" {
		return errors.New("output: path must not be the filesystem root")
	}
	return nil
}

// RenderConfig holds template, profile and pagination settings.
type RenderConfig struct {
	// Template is a directory holding list.html and post.html. Empty uses
	// the built-in templates.
	Template string   `yaml:"template"`
	Profile  string   `yaml:"profile"`
	Static   []string `yaml:"static"`
	PageSize int      `yaml:"page_size"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Static, validation.Each(validation.Required)),
	)
}

// LimitsConfig holds resource limits.
type LimitsConfig struct {
	// OpenFiles is the process file descriptor budget. storage.Margin
	// descriptors are held back for the runtime.
	OpenFiles int `yaml:"open_files"`
}

// Validate validates the limits configuration.
func (c *LimitsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OpenFiles, validation.Required, validation.Min(storage.Margin+2)),
	)
}

// TokenizerConfig selects the tokenizer. An empty command uses the
// in-process splitter.
type TokenizerConfig struct {
	Command []string `yaml:"command"`
	Env     []string `yaml:"env"`
	Workers int      `yaml:"workers"`
}

// External reports whether an external worker command is configured.
func (c *TokenizerConfig) External() bool {
	return len(c.Command) > 0
}

// Validate validates the tokenizer configuration.
func (c *TokenizerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.When(c.External(), validation.Required, validation.Min(1))),
	)
}

// ServeConfig holds preview server configuration.
type ServeConfig struct {
	Port  int  `yaml:"port"`
	Watch bool `yaml:"watch"`
}

// Address returns the HTTP listen address.
func (c *ServeConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Content: ContentConfig{
			Roots: []string{"./content"},
		},
		Output: OutputConfig{
			Path: "./public",
		},
		Render: RenderConfig{
			PageSize: 10,
		},
		Limits: LimitsConfig{
			OpenFiles: 1024,
		},
		Tokenizer: TokenizerConfig{
			Workers: 5,
		},
		Serve: ServeConfig{
			Port:  8080,
			Watch: true,
		},
	}
}
