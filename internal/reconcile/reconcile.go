// Package reconcile decides, for each source document, whether it is new,
// unchanged, or modified; assigns or retrieves its stable identity and
// timestamps through the entry store; and renders it into a feed entry.
//
// The store is the sole source of truth for id and published; the filesystem
// is the sole source of truth for current content.
package reconcile

import (
	"context"
	"html"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/atom"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/convert"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/store"
)

// Params configures an Engine.
type Params struct {
	// SourceDir is the traversal root holding the Markdown tree.
	SourceDir string
	// AlternateBase is the site base URL entry alternate links resolve
	// against.
	AlternateBase *url.URL
	// PathCategories derives additional category terms from the directory
	// segments of each document path.
	PathCategories bool
	// Timeout bounds each converter invocation. Zero means no deadline.
	Timeout time.Duration
	// Workers bounds concurrent document reconciliation. Zero or negative
	// means sequential.
	Workers int
	// Now and NewID exist for tests; they default to time.Now and a
	// urn:uuid identifier generator.
	Now   func() time.Time
	NewID func() string
}

// Engine runs the per-document reconciliation state machine.
type Engine struct {
	store  store.EntryStore
	conv   convert.Converter
	logger *slog.Logger
	params Params

	// mu serializes lookup-then-write against the store so the
	// check-fingerprint-then-conditionally-write step stays atomic per path.
	mu sync.Mutex
}

// New builds an Engine. Zero-value Params fields get working defaults.
func New(st store.EntryStore, conv convert.Converter, logger *slog.Logger, params Params) *Engine {
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.NewID == nil {
		params.NewID = func() string { return "urn:uuid:" + uuid.NewString() }
	}
	if params.Workers <= 0 {
		params.Workers = 1
	}
	return &Engine{store: st, conv: conv, logger: logger, params: params}
}

// Result is the feed-visible projection of one reconciled document.
type Result struct {
	Path    string
	Entry   atom.Entry
	Updated time.Time
	// FeedIgnore is set when the document opted out of the feed; its store
	// row is still maintained.
	FeedIgnore bool
}

// Failure records one document that could not be reconciled.
type Failure struct {
	Path string
	Err  error
}

// ReconcileAll reconciles every feed candidate concurrently, bounded by the
// configured worker count. Results keep the input document order. Documents
// without a front-matter block are skipped entirely; per-document failures
// are collected, not fatal, so one bad document cannot sink the run.
func (e *Engine) ReconcileAll(ctx context.Context, docs []*parser.Document) ([]Result, []Failure) {
	results := make([]*Result, len(docs))
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)
	for i, doc := range docs {
		if doc.Meta == nil {
			continue
		}
		i, doc := i, doc
		g.Go(func() error {
			res, err := e.Reconcile(gctx, doc)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []Result
		failures []Failure
	)
	for i, doc := range docs {
		if errs[i] != nil {
			failures = append(failures, Failure{Path: doc.Path, Err: errs[i]})
			continue
		}
		if results[i] != nil {
			out = append(out, *results[i])
		}
	}
	return out, failures
}

// Reconcile runs the state machine for one document: look up its path,
// insert a fresh row or advance the fingerprint as needed, then render the
// body into a feed entry.
func (e *Engine) Reconcile(ctx context.Context, doc *parser.Document) (*Result, error) {
	title := doc.Title()
	if title == "" {
		return nil, apperr.New(apperr.KindParseFailure, "reconcile: %s: no title in front matter or body", doc.Path)
	}

	fingerprint := checksum.SumString(doc.Body)
	rec, err := e.resolve(doc.Path, fingerprint)
	if err != nil {
		return nil, err
	}

	renderCtx := ctx
	if e.params.Timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, e.params.Timeout)
		defer cancel()
	}
	content, err := e.conv.Render(renderCtx, filepath.Join(e.params.SourceDir, filepath.FromSlash(doc.Path)))
	if err != nil {
		return nil, err
	}

	entry := e.buildEntry(doc, title, rec, content)
	return &Result{
		Path:       doc.Path,
		Entry:      entry,
		Updated:    rec.Updated,
		FeedIgnore: doc.Meta.FeedIgnore,
	}, nil
}

// resolve performs the lookup/insert/update step as one serialized unit.
func (e *Engine) resolve(docPath, fingerprint string) (*store.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.Get(docPath)
	if err != nil {
		return nil, err
	}

	switch {
	case rec == nil:
		// NEW: first sighting of this path.
		now := e.params.Now().UTC()
		rec = &store.Record{
			ID:          e.params.NewID(),
			Path:        docPath,
			Fingerprint: fingerprint,
			Published:   now,
			Updated:     now,
		}
		if err := e.store.Insert(*rec); err != nil {
			return nil, err
		}
		e.logger.Info("reconcile: new entry",
			slog.String("path", docPath), slog.String("id", rec.ID))

	case rec.Fingerprint != fingerprint:
		// EXISTING, content changed: advance updated, keep id/published.
		now := e.params.Now().UTC()
		if err := e.store.UpdateFingerprint(rec.ID, fingerprint, now); err != nil {
			return nil, err
		}
		rec.Fingerprint = fingerprint
		rec.Updated = now
		e.logger.Info("reconcile: content changed",
			slog.String("path", docPath), slog.String("id", rec.ID))

	default:
		// EXISTING, unchanged: stored timestamps stand.
		e.logger.Debug("reconcile: unchanged", slog.String("path", docPath))
	}
	return rec, nil
}

func (e *Engine) buildEntry(doc *parser.Document, title string, rec *store.Record, content string) atom.Entry {
	meta := doc.Meta
	entry := atom.Entry{
		ID:           rec.ID,
		Title:        atom.NewText(title),
		Published:    atom.FormatTime(rec.Published),
		Updated:      atom.FormatTime(rec.Updated),
		Authors:      atom.Persons(meta.Authors, e.logger),
		Contributors: atom.Persons(meta.Contributors, e.logger),
		Categories:   e.categories(doc),
	}

	if href := e.alternateHref(doc.Path); href != "" {
		entry.Links = append(entry.Links, atom.Link{Type: "text/html", Rel: "alternate", Href: href})
	}
	entry.Links = append(entry.Links, extraLinks(meta.Links, e.logger)...)

	if meta.Summary != "" {
		summary := atom.NewText(meta.Summary)
		entry.Summary = &summary
	}
	if content != "" {
		entry.Content = &atom.Text{Type: "html", Value: content}
	}
	return entry
}

// alternateHref maps a document's relative path to its rendered page URL:
// the .md extension swapped for .html, resolved against the site base.
func (e *Engine) alternateHref(docPath string) string {
	if e.params.AlternateBase == nil {
		return ""
	}
	rel := strings.TrimSuffix(filepath.ToSlash(docPath), ".md") + ".html"
	ref, err := url.Parse(rel)
	if err != nil {
		return ""
	}
	return e.params.AlternateBase.ResolveReference(ref).String()
}

// categories merges explicit front-matter terms with path-segment terms.
// A path segment already declared explicitly is not added twice.
func (e *Engine) categories(doc *parser.Document) []atom.Category {
	var out []atom.Category
	explicit := make(map[string]struct{})

	for _, c := range doc.Meta.Categories {
		if c.Term == "" || html.EscapeString(c.Term) != c.Term {
			e.logger.Warn("reconcile: skipping unsafe category term",
				slog.String("path", doc.Path), slog.String("term", c.Term))
			continue
		}
		label := c.Label
		if label == "" || html.EscapeString(label) != label {
			label = c.Term
		}
		explicit[c.Term] = struct{}{}
		out = append(out, atom.Category{Term: c.Term, Label: label, Scheme: e.categoryScheme(c.Term)})
	}

	if !e.params.PathCategories {
		return out
	}
	dir := path.Dir(filepath.ToSlash(doc.Path))
	if dir == "." {
		return out
	}
	for _, seg := range strings.Split(dir, "/") {
		if seg == "" || seg == "." || strings.HasPrefix(seg, ".") {
			continue
		}
		if html.EscapeString(seg) != seg {
			continue
		}
		if _, dup := explicit[seg]; dup {
			continue
		}
		out = append(out, atom.Category{Term: seg, Label: seg, Scheme: e.categoryScheme(seg)})
	}
	return out
}

// categoryScheme points a term at its category page under the site base.
func (e *Engine) categoryScheme(term string) string {
	if e.params.AlternateBase == nil {
		return ""
	}
	return e.params.AlternateBase.JoinPath("category", term+".html").String()
}

// extraLinks converts front-matter link records, normalizing rel values the
// feed accepts and dropping malformed entries. The alternate rel is reserved
// for the derived page link.
func extraLinks(links []parser.Link, logger *slog.Logger) []atom.Link {
	var out []atom.Link
	for _, l := range links {
		if l.Href == "" || l.Rel == "alternate" {
			continue
		}
		if is.URL.Validate(l.Href) != nil {
			logger.Warn("reconcile: dropping link with invalid href", slog.String("href", l.Href))
			continue
		}
		rel := l.Rel
		switch rel {
		case "related", "via", "self", "enclosure":
		default:
			rel = "related"
		}
		typ := l.Type
		if typ == "" {
			typ = "text/html"
		}
		out = append(out, atom.Link{Type: typ, Rel: rel, Href: l.Href})
	}
	return out
}
