// Package config loads the gsxls configuration file.
//
// Example:
//
//	features:
//	  implementation: true
//	  definition: true
//	  formatting: false
//	languages:
//	  go:
//	    command: gopls
//	    args: [-mode=stdio]
//	    triggerCharacters: ["}", ";", "\n"]
//	log:
//	  level: debug
//	  file: /tmp/gsxls.log
//	metrics:
//	  addr: localhost:9464
package config

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/grindlemire/gsxls/pkg/lsp/foreign"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

var validate = validator.New()

// Config is the complete server configuration.
type Config struct {
	Features  Features                  `yaml:"features"`
	Languages map[string]LanguageConfig `yaml:"languages" validate:"dive"`
	Log       LogConfig                 `yaml:"log"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

// Features switches delegated request kinds on and off.
type Features struct {
	Implementation bool `yaml:"implementation"`
	Definition     bool `yaml:"definition"`
	Formatting     bool `yaml:"formatting"`
}

// Enabled reports whether the named feature is on. Unknown names are off.
func (f Features) Enabled(name string) bool {
	switch name {
	case "implementation":
		return f.Implementation
	case "definition":
		return f.Definition
	case "formatting":
		return f.Formatting
	}
	return false
}

// LanguageConfig configures the foreign language server for one embedded
// language.
type LanguageConfig struct {
	Command           string   `yaml:"command" validate:"required"`
	Args              []string `yaml:"args"`
	TriggerCharacters []string `yaml:"triggerCharacters" validate:"dive,len=1"`
	Disabled          bool     `yaml:"disabled"`
}

// LogConfig configures the log file. Logging is off without a file.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint. Off without an address.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Features: Features{
			Implementation: true,
			Definition:     true,
			Formatting:     true,
		},
		Languages: map[string]LanguageConfig{
			"go": {
				Command:           "gopls",
				Args:              []string{"-mode=stdio"},
				TriggerCharacters: []string{"}", ";", "\n"},
			},
			"tailwind": {
				Command: "tailwindcss-language-server",
				Args:    []string{"--stdio"},
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and language names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name := range c.Languages {
		lang, err := mapping.ParseLanguage(name)
		if err != nil {
			return err
		}
		if !slices.Contains(mapping.Languages, lang) {
			return fmt.Errorf("language %q has no generated document", name)
		}
	}
	return nil
}

// TriggerAllowed reports whether ch is a configured trigger character for
// lang.
func (c *Config) TriggerAllowed(lang mapping.Language, ch string) bool {
	lc, ok := c.Languages[lang.String()]
	if !ok {
		return false
	}
	return slices.Contains(lc.TriggerCharacters, ch)
}

// Specs returns the language servers to start, in language order.
func (c *Config) Specs() []foreign.Spec {
	var specs []foreign.Spec
	for name, lc := range c.Languages {
		if lc.Disabled {
			continue
		}
		lang, err := mapping.ParseLanguage(name)
		if err != nil {
			continue
		}
		specs = append(specs, foreign.Spec{Language: lang, Command: lc.Command, Args: lc.Args})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Language < specs[j].Language })
	return specs
}
