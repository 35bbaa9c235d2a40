// Package convert renders Markdown sources to HTML. The default engine is an
// external pandoc subprocess; an in-process goldmark engine is available
// behind the same interface for installs without pandoc.
package convert

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Converter renders Markdown sources to HTML.
type Converter interface {
	// Render converts the document at sourcePath and returns the rendered
	// HTML fragment used as feed entry content.
	Render(ctx context.Context, sourcePath string) (string, error)
	// RenderPage converts the document at sourcePath into a standalone HTML
	// page written to destPath.
	RenderPage(ctx context.Context, sourcePath, destPath string) error
}

// Pandoc invokes the pandoc binary once per document.
type Pandoc struct {
	// Command is the binary to execute, "pandoc" by default.
	Command string
	// From and To are the markup dialect flags passed to pandoc.
	From string
	To   string
	// Template is an optional pandoc template used for standalone pages.
	Template string
}

// NewPandoc returns a Pandoc converter with the default dialect flags.
func NewPandoc(command, template string) *Pandoc {
	if command == "" {
		command = "pandoc"
	}
	return &Pandoc{Command: command, From: "markdown", To: "html5", Template: template}
}

// fragmentArgs builds the argument list for rendering feed entry content.
func (p *Pandoc) fragmentArgs(sourcePath string) []string {
	return []string{sourcePath, "-f", p.From, "-t", p.To}
}

// pageArgs builds the argument list for rendering a standalone page.
func (p *Pandoc) pageArgs(sourcePath, destPath string) []string {
	args := []string{sourcePath, "-f", p.From, "-t", p.To, "-s"}
	if p.Template != "" {
		args = append(args, "--template="+p.Template)
	}
	return append(args, "-o", destPath)
}

// Render converts sourcePath to an HTML fragment on stdout.
func (p *Pandoc) Render(ctx context.Context, sourcePath string) (string, error) {
	out, err := p.run(ctx, p.fragmentArgs(sourcePath))
	if err != nil {
		return "", err
	}
	return out, nil
}

// RenderPage converts sourcePath to a standalone page at destPath.
func (p *Pandoc) RenderPage(ctx context.Context, sourcePath, destPath string) error {
	_, err := p.run(ctx, p.pageArgs(sourcePath, destPath))
	return err
}

func (p *Pandoc) run(ctx context.Context, args []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}
	// A dead context (deadline or shutdown) is not a converter failure, and
	// whatever pandoc wrote to stderr on the way down is not the diagnostic.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", apperr.Wrap(apperr.KindConversionTimeout, ctxErr,
			"convert: %s %s", p.Command, args[0])
	}
	diag := strings.TrimSpace(stderr.String())
	if diag == "" {
		diag = err.Error()
	}
	return "", apperr.New(apperr.KindConversionFailure,
		"convert: %s %s: %s", p.Command, args[0], diag)
}
