package internal

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sowilo/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestConfig_DecodeOverDefaults(t *testing.T) {
	t.Setenv("SOWILO_OUT", "/srv/site")
	cfg := NewDefaultConfig()
	err := config.Decode([]byte(`
app:
  log_level: debug
content:
  roots: [./blog, ./notes]
output:
  path: ${SOWILO_OUT}
  collect_documents: true
render:
  page_size: 20
tokenizer:
  command: [python3, tokenize.py]
  workers: 3
`), cfg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if diff := cmp.Diff([]string{"./blog", "./notes"}, cfg.Content.Roots); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
	if cfg.Output.Path != "/srv/site" || !cfg.Output.CollectDocuments {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Render.PageSize != 20 || cfg.Limits.OpenFiles != 1024 || cfg.Serve.Port != 8080 {
		t.Errorf("defaults lost: %+v %+v %+v", cfg.Render, cfg.Limits, cfg.Serve)
	}
	if !cfg.Tokenizer.External() || cfg.Tokenizer.Workers != 3 {
		t.Errorf("tokenizer = %+v", cfg.Tokenizer)
	}
}

func TestConfig_UnknownKeyRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := config.Decode([]byte("output:\n  dir: x\n"), cfg); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no roots", func(c *Config) { c.Content.Roots = nil }, "Roots"},
		{"empty root", func(c *Config) { c.Content.Roots = []string{""} }, "Roots"},
		{"no output", func(c *Config) { c.Output.Path = "" }, "Path"},
		{"output at fs root", func(c *Config) { c.Output.Path = "/" }, "filesystem root"},
		{"output is a root", func(c *Config) { c.Output.Path = "./content" }, "contains content root"},
		{"output above a root", func(c *Config) { c.Output.Path = "." }, "contains content root"},
		{"page size", func(c *Config) { c.Render.PageSize = 0 }, "PageSize"},
		{"open files", func(c *Config) { c.Limits.OpenFiles = 21 }, "OpenFiles"},
		{"workers", func(c *Config) {
			c.Tokenizer.Command = []string{"tok"}
			c.Tokenizer.Workers = 0
		}, "Workers"},
		{"port", func(c *Config) { c.Serve.Port = 70000 }, "Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestTokenizerConfig_WorkersIgnoredWhenBuiltin(t *testing.T) {
	c := TokenizerConfig{Workers: 0}
	if err := c.Validate(); err != nil {
		t.Errorf("builtin tokenizer with no workers should pass: %v", err)
	}
}

func TestConfig_OutputBelowRootAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Path = "./content/public"
	if err := cfg.Validate(); err != nil {
		t.Errorf("output below a root should pass: %v", err)
	}
}
