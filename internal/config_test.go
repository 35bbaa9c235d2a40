package internal

import (
	"log/slog"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/parser"
)

func validFeed() FeedConfig {
	return FeedConfig{
		Title:         "T",
		ID:            "urn:x",
		Authors:       []parser.Person{{Name: "Bob"}},
		AlternateLink: "https://example.com/",
	}
}

func TestConfig_ValidWithFeed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Feed = validFeed()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_DefaultsRejectMissingFeed(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without feed configuration")
	}
}

func TestFeedConfig_Minimums(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*FeedConfig)
	}{
		{"missing title", func(f *FeedConfig) { f.Title = "" }},
		{"missing id", func(f *FeedConfig) { f.ID = "" }},
		{"missing alternate link", func(f *FeedConfig) { f.AlternateLink = "" }},
		{"malformed alternate link", func(f *FeedConfig) { f.AlternateLink = "::" }},
		{"malformed self link", func(f *FeedConfig) { f.SelfLink = "::" }},
		{"no authors", func(f *FeedConfig) { f.Authors = nil }},
		{"empty author name", func(f *FeedConfig) { f.Authors = []parser.Person{{Name: ""}} }},
		{"unsafe author name", func(f *FeedConfig) { f.Authors = []parser.Person{{Name: "<b>x</b>"}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed := validFeed()
			tc.mutate(&feed)
			if err := feed.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFeedConfig_OneSafeAuthorSuffices(t *testing.T) {
	feed := validFeed()
	feed.Authors = []parser.Person{{Name: "<bad>"}, {Name: "Bob"}}
	if err := feed.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFeedConfig_AlternateBase(t *testing.T) {
	feed := validFeed()
	base, err := feed.AlternateBase()
	if err != nil {
		t.Fatalf("AlternateBase: %v", err)
	}
	if base.Host != "example.com" {
		t.Errorf("host = %q", base.Host)
	}
}

func TestConverterConfig_EngineValidation(t *testing.T) {
	c := ConverterConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Engine != EnginePandoc {
		t.Errorf("default engine = %q", c.Engine)
	}

	c = ConverterConfig{Engine: "asciidoctor"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown engine")
	}

	c = ConverterConfig{Engine: EngineGoldmark, TimeoutSeconds: -1}
	if err := c.Validate(); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestConverterConfig_Timeout(t *testing.T) {
	c := ConverterConfig{TimeoutSeconds: 30}
	if got := c.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout = %v", got)
	}
	c.TimeoutSeconds = 0
	if got := c.Timeout(); got != 0 {
		t.Errorf("Timeout = %v, want 0", got)
	}
}

func TestApplicationConfig_LogLevel(t *testing.T) {
	c := ApplicationConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.LogLevel != "info" {
		t.Errorf("default level = %q", c.LogLevel)
	}
	if c.SlogLevel() != slog.LevelInfo {
		t.Errorf("slog level = %v", c.SlogLevel())
	}

	c = ApplicationConfig{LogLevel: "verbose"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown level")
	}

	c = ApplicationConfig{LogLevel: "debug"}
	if c.SlogLevel() != slog.LevelDebug {
		t.Errorf("slog level = %v", c.SlogLevel())
	}
}
