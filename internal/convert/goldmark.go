package convert

import (
	"bytes"
	"context"
	"html/template"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/parser"
)

// defaultPageTemplate wraps a rendered body when no template file is given.
const defaultPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`

// Goldmark renders Markdown in-process. The engine is stateless and safe for
// concurrent use.
type Goldmark struct {
	engine goldmark.Markdown
	page   *template.Template
}

// NewGoldmark builds an in-process converter with GFM extensions. templatePath
// optionally points at an html/template file with .Title and .Body fields.
func NewGoldmark(templatePath string) (*Goldmark, error) {
	engine := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithParserOptions(gmparser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	text := defaultPageTemplate
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfigInvalid, err, "convert: read template")
		}
		text = string(data)
	}
	page, err := template.New("page").Parse(text)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigInvalid, err, "convert: parse template")
	}
	return &Goldmark{engine: engine, page: page}, nil
}

// Verify Goldmark satisfies Converter at compile time.
var _ Converter = (*Goldmark)(nil)

func (g *Goldmark) load(sourcePath string) (*parser.Document, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConversionFailure, err, "convert: read %s", sourcePath)
	}
	return parser.Parse(sourcePath, data), nil
}

func (g *Goldmark) render(doc *parser.Document) (string, error) {
	var buf bytes.Buffer
	if err := g.engine.Convert([]byte(doc.Body), &buf); err != nil {
		return "", apperr.Wrap(apperr.KindConversionFailure, err, "convert: %s", doc.Path)
	}
	return buf.String(), nil
}

// Render converts the body of the document at sourcePath to an HTML fragment.
func (g *Goldmark) Render(ctx context.Context, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Wrap(apperr.KindConversionTimeout, err, "convert: %s", sourcePath)
	}
	doc, err := g.load(sourcePath)
	if err != nil {
		return "", err
	}
	return g.render(doc)
}

// RenderPage converts sourcePath into a standalone page at destPath. The
// destination directory must already exist; the caller owns the output tree.
func (g *Goldmark) RenderPage(ctx context.Context, sourcePath, destPath string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindConversionTimeout, err, "convert: %s", sourcePath)
	}
	doc, err := g.load(sourcePath)
	if err != nil {
		return err
	}
	fragment, err := g.render(doc)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = g.page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: doc.Title(),
		Body:  template.HTML(fragment),
	})
	if err != nil {
		return apperr.Wrap(apperr.KindConversionFailure, err, "convert: page %s", sourcePath)
	}

	if err := os.WriteFile(destPath, buf.Bytes(), 0o644); err != nil {
		return apperr.Wrap(apperr.KindConversionFailure, err, "convert: write %s", destPath)
	}
	return nil
}
