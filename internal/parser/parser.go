// Package parser splits source documents into YAML front matter and Markdown
// body. The split is pure: no filesystem access, no state.
package parser

import (
	"bytes"
	"strings"

	"github.com/adrg/frontmatter"
)

// Person is an author or contributor declared in front matter.
type Person struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	URL   string `yaml:"url"`
}

// Category is a term/label pair attached to a document.
type Category struct {
	Term  string `yaml:"term"`
	Label string `yaml:"label"`
}

// Link is an extra feed link declared in front matter.
type Link struct {
	Href string `yaml:"href"`
	Rel  string `yaml:"rel"`
	Type string `yaml:"type"`
}

// Meta holds the recognized front-matter keys. Unrecognized keys are kept in
// Extra so future consumers can reach them without reparsing.
type Meta struct {
	Title        string         `yaml:"title"`
	Summary      string         `yaml:"summary"`
	Rights       string         `yaml:"rights"`
	FeedIgnore   bool           `yaml:"feed_ignore"`
	Authors      []Person       `yaml:"authors"`
	Contributors []Person       `yaml:"contributors"`
	Categories   []Category     `yaml:"categories"`
	Links        []Link         `yaml:"links"`
	Extra        map[string]any `yaml:",inline"`
}

// Document is the per-run, ephemeral view of one source file.
type Document struct {
	// Path is the location relative to the traversal root, the natural key
	// used to correlate with stored entries.
	Path string
	// Meta is nil when the file carries no front-matter block. Such files
	// are rendered as pages but are not feed candidates.
	Meta *Meta
	// Body is everything after the closing front-matter delimiter.
	Body string
}

// Title returns the front-matter title, falling back to the first H1 heading
// in the body.
func (d *Document) Title() string {
	if d.Meta != nil && d.Meta.Title != "" {
		return d.Meta.Title
	}
	for _, line := range strings.Split(d.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// FeedCandidate reports whether the document should produce a feed entry:
// it has a front-matter block and is not explicitly opted out.
func (d *Document) FeedCandidate() bool {
	return d.Meta != nil && !d.Meta.FeedIgnore
}

// Parse splits raw document bytes into front matter and body. A document
// without a leading front-matter block, or with one that fails to decode,
// yields Meta == nil and the full input as body: such files are rendered as
// pages but never become feed entries.
func Parse(path string, data []byte) *Document {
	var meta Meta
	body, err := frontmatter.MustParse(bytes.NewReader(data), &meta)
	if err != nil {
		return &Document{Path: path, Body: string(data)}
	}
	return &Document{Path: path, Meta: &meta, Body: string(body)}
}
