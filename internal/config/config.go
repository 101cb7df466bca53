// Package config implements the layered run configuration for the
// checker, in the Values/Overrides/Apply/Validate shape the wider
// example pack uses for threshold-style settings: a Values struct of
// concrete defaults, an Overrides struct of pointer fields read from a
// config file, and Apply/Validate to merge and sanity-check them.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jvm-linkage/checker/internal/safeio"
)

// OutputFormat names one of the supported report renderings.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatDot   OutputFormat = "dot"
	FormatSARIF OutputFormat = "sarif"
)

const (
	DefaultMaxParsers         = 0 // 0 means "CPU count", spec §5
	DefaultMaxOpenArchives    = 64
	DefaultPreferFirstDeclared = true
	DefaultOutputFormat       = FormatText
)

// Values is the resolved, concrete configuration a run executes with.
type Values struct {
	MaxParsers      int
	MaxOpenArchives int
	// PreferFirstDeclared is loaded and validated with the rest of the
	// configuration, but no stage of a run reads it: the classpath
	// builder always keeps the first-encountered candidate for a module
	// key, whatever its value.
	PreferFirstDeclared bool
	OutputFormat        OutputFormat
	ExtraClasspath      []string
}

// Overrides is the subset of Values a config file may set; nil fields
// fall back to defaults.
type Overrides struct {
	MaxParsers          *int
	MaxOpenArchives     *int
	PreferFirstDeclared *bool
	OutputFormat        *OutputFormat
	ExtraClasspath      []string
}

// Defaults returns the checker's built-in configuration.
func Defaults() Values {
	return Values{
		MaxParsers:          DefaultMaxParsers,
		MaxOpenArchives:     DefaultMaxOpenArchives,
		PreferFirstDeclared: DefaultPreferFirstDeclared,
		OutputFormat:        DefaultOutputFormat,
	}
}

// Apply merges overrides onto base, returning the resolved Values.
func (o Overrides) Apply(base Values) Values {
	resolved := base
	if o.MaxParsers != nil {
		resolved.MaxParsers = *o.MaxParsers
	}
	if o.MaxOpenArchives != nil {
		resolved.MaxOpenArchives = *o.MaxOpenArchives
	}
	if o.PreferFirstDeclared != nil {
		resolved.PreferFirstDeclared = *o.PreferFirstDeclared
	}
	if o.OutputFormat != nil {
		resolved.OutputFormat = *o.OutputFormat
	}
	if len(o.ExtraClasspath) > 0 {
		resolved.ExtraClasspath = append([]string{}, o.ExtraClasspath...)
	}
	return resolved
}

// Validate checks a resolved configuration for internal consistency.
func (v Values) Validate() error {
	if v.MaxParsers < 0 {
		return fmt.Errorf("invalid max_parsers: %d (must be >= 0, 0 means CPU count)", v.MaxParsers)
	}
	if v.MaxOpenArchives < 1 {
		return fmt.Errorf("invalid max_open_archives: %d (must be >= 1)", v.MaxOpenArchives)
	}
	switch v.OutputFormat {
	case FormatText, FormatJSON, FormatDot, FormatSARIF:
	default:
		return fmt.Errorf("invalid output_format: %q", v.OutputFormat)
	}
	return nil
}

// Validate checks only the fields an Overrides actually sets.
func (o Overrides) Validate() error {
	if o.MaxParsers != nil && *o.MaxParsers < 0 {
		return fmt.Errorf("invalid max_parsers: %d (must be >= 0, 0 means CPU count)", *o.MaxParsers)
	}
	if o.MaxOpenArchives != nil && *o.MaxOpenArchives < 1 {
		return fmt.Errorf("invalid max_open_archives: %d (must be >= 1)", *o.MaxOpenArchives)
	}
	if o.OutputFormat != nil {
		switch *o.OutputFormat {
		case FormatText, FormatJSON, FormatDot, FormatSARIF:
		default:
			return fmt.Errorf("invalid output_format: %q", *o.OutputFormat)
		}
	}
	return nil
}

type rawConfig struct {
	MaxParsers          *int     `yaml:"max_parsers" json:"max_parsers" toml:"max_parsers"`
	MaxOpenArchives     *int     `yaml:"max_open_archives" json:"max_open_archives" toml:"max_open_archives"`
	PreferFirstDeclared *bool    `yaml:"prefer_first_declared" json:"prefer_first_declared" toml:"prefer_first_declared"`
	OutputFormat        *string  `yaml:"output_format" json:"output_format" toml:"output_format"`
	ExtraClasspath      []string `yaml:"extra_classpath" json:"extra_classpath" toml:"extra_classpath"`
}

func (c rawConfig) toOverrides() Overrides {
	o := Overrides{
		MaxParsers:          c.MaxParsers,
		MaxOpenArchives:     c.MaxOpenArchives,
		PreferFirstDeclared: c.PreferFirstDeclared,
		ExtraClasspath:      c.ExtraClasspath,
	}
	if c.OutputFormat != nil {
		f := OutputFormat(*c.OutputFormat)
		o.OutputFormat = &f
	}
	return o
}

// Load reads a config file at path (YAML, JSON, or TOML, dispatched by
// extension) and returns the Overrides it declares. rootDir scopes
// path-traversal-safe reads: path must resolve under rootDir unless it
// is already absolute and outside it, in which case it is read
// directly (mirroring the "explicit path escapes the repo" allowance
// the wider example pack's config loader makes for caller-supplied
// paths).
func Load(rootDir, path string) (Overrides, error) {
	var data []byte
	var err error
	if filepath.IsAbs(path) {
		data, err = safeio.ReadFile(path)
	} else {
		data, err = safeio.ReadFileUnder(rootDir, filepath.Join(rootDir, path))
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&raw); err != nil {
			return Overrides{}, fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Overrides{}, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return Overrides{}, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	}

	overrides := raw.toOverrides()
	if err := overrides.Validate(); err != nil {
		return Overrides{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return overrides, nil
}

// LoadOrDefault behaves like Load, but returns Defaults() unmodified
// when explicitPath is empty and no conventional config file exists
// under rootDir.
func LoadOrDefault(rootDir, explicitPath string) (Values, error) {
	path := strings.TrimSpace(explicitPath)
	if path == "" {
		for _, name := range []string{".linkage-checker.yml", ".linkage-checker.yaml", "linkage-checker.json", "linkage-checker.toml"} {
			candidate := filepath.Join(rootDir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = name
				break
			}
		}
	}
	if path == "" {
		return Defaults(), nil
	}

	overrides, err := Load(rootDir, path)
	if err != nil {
		return Values{}, err
	}
	resolved := overrides.Apply(Defaults())
	if err := resolved.Validate(); err != nil {
		return Values{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return resolved, nil
}
