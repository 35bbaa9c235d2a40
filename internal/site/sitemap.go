package site

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/starford/ansuz/internal/parser"
)

// SitemapPath is where the generated link index page lands in the output tree.
const SitemapPath = "links.html"

var sitemapTmpl = template.Must(template.New("sitemap").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>All internal links</title>
</head>
<body>
<h1>All internal links</h1>
<ul>
{{- range .}}
<li><a href="{{.Href}}">{{.Label}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

type sitemapItem struct {
	Href  string
	Label string
}

// Sitemap renders an HTML page linking every rendered document, resolved
// against the site base URL.
func Sitemap(docs []*parser.Document, base *url.URL) ([]byte, error) {
	items := make([]sitemapItem, 0, len(docs))
	for _, doc := range docs {
		rel := strings.TrimSuffix(doc.Path, ".md") + ".html"
		ref, err := url.Parse(rel)
		if err != nil {
			continue
		}
		items = append(items, sitemapItem{
			Href:  base.ResolveReference(ref).String(),
			Label: rel,
		})
	}

	var buf bytes.Buffer
	if err := sitemapTmpl.Execute(&buf, items); err != nil {
		return nil, fmt.Errorf("site: render sitemap: %w", err)
	}
	return buf.Bytes(), nil
}
