package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/starford/ansuz/internal/convert"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	converter convert.Converter
	confirm   func(prompt string) bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConverter overrides the converter built from configuration. Used by
// tests to inject a fake.
func WithConverter(c convert.Converter) Option {
	return func(a *application) {
		a.converter = c
	}
}

// WithConfirm overrides the interactive yes/no prompt used when the
// configured feed id differs from the stored one and no entries exist yet.
func WithConfirm(fn func(prompt string) bool) Option {
	return func(a *application) {
		a.confirm = fn
	}
}

// stdinConfirm asks a yes/no question on the terminal.
func stdinConfirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
