// Package internal wires configuration, the entry store, the reconciliation
// engine, and the output writers into the generate and watch commands.
package internal

import (
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/parser"
)

// Converter engines.
const (
	EnginePandoc   = "pandoc"
	EngineGoldmark = "goldmark"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Source    SourceConfig      `yaml:"source"`
	Output    OutputConfig      `yaml:"output"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Converter ConverterConfig   `yaml:"converter"`
	Site      SiteConfig        `yaml:"site"`
	Feed      FeedConfig        `yaml:"feed"`
}

// Validate validates the whole configuration. Any failure here is fatal
// before generation starts.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.App, &c.Source, &c.Output, &c.SQLite, &c.Converter, &c.Feed,
	} {
		if err := v.Validate(); err != nil {
			return apperr.Wrap(apperr.KindConfigInvalid, err, "config")
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel string `yaml:"log_level"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// SlogLevel maps the configured level name to a slog.Level.
func (c *ApplicationConfig) SlogLevel() slog.Level {
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

// SourceConfig holds the path to the Markdown source tree.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OutputConfig holds the path of the generated site.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the entry-store database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ConverterConfig selects and tunes the Markdown-to-HTML converter.
//
// Engine picks the implementation:
//   - "pandoc" (default): external pandoc subprocess, one call per document.
//   - "goldmark": in-process rendering, no external binary required.
type ConverterConfig struct {
	Engine         string `yaml:"engine"`
	Command        string `yaml:"command"`
	Template       string `yaml:"template"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Workers        int    `yaml:"workers"`
}

// Validate validates the converter configuration.
func (c *ConverterConfig) Validate() error {
	if c.Engine == "" {
		c.Engine = EnginePandoc
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.Required, validation.In(EnginePandoc, EngineGoldmark)),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// Timeout returns the per-document converter deadline, zero for none.
func (c *ConverterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SiteConfig holds site-generation toggles.
type SiteConfig struct {
	// PathCategories derives category terms from directory names between
	// the source root and each document.
	PathCategories bool `yaml:"path_categories"`
	// SiteMap emits a links.html page listing every rendered document.
	SiteMap bool `yaml:"site_map"`
}

// FeedConfig is the feed-level metadata block.
type FeedConfig struct {
	Title         string          `yaml:"title"`
	ID            string          `yaml:"id"`
	Authors       []parser.Person `yaml:"authors"`
	Contributors  []parser.Person `yaml:"contributors"`
	SelfLink      string          `yaml:"self_link"`
	AlternateLink string          `yaml:"alternate_link"`
	Icon          string          `yaml:"icon"`
	Logo          string          `yaml:"logo"`
	Rights        string          `yaml:"rights"`
}

// Validate enforces the feed minimums: title, id, at least one author with a
// non-empty, escape-stable name, and a well-formed alternate link (the base
// every derived page, category, and sitemap URL resolves against).
func (c *FeedConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.AlternateLink, validation.Required, is.URL),
		validation.Field(&c.SelfLink, is.URL),
	); err != nil {
		return err
	}

	valid := 0
	for _, a := range c.Authors {
		if a.Name != "" && html.EscapeString(a.Name) == a.Name {
			valid++
		}
	}
	if valid == 0 {
		return fmt.Errorf("feed: authors: at least one author with a safe, non-empty name is required")
	}
	return nil
}

// AlternateBase parses the alternate link into the base URL used for link
// derivation. Validate must have passed first.
func (c *FeedConfig) AlternateBase() (*url.URL, error) {
	u, err := url.Parse(c.AlternateLink)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigInvalid, err, "feed: alternate_link")
	}
	return u, nil
}

// NewDefaultConfig returns a Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App:    ApplicationConfig{LogLevel: "info"},
		Source: SourceConfig{Path: "./markdown"},
		Output: OutputConfig{Path: "./public"},
		SQLite: SQLiteConfig{Path: "./feed.db"},
		Converter: ConverterConfig{
			Engine:         EnginePandoc,
			Command:        "pandoc",
			TimeoutSeconds: 60,
			Workers:        4,
		},
		Site: SiteConfig{PathCategories: true},
	}
}
