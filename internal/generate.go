package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/atom"
	"github.com/starford/ansuz/internal/convert"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/site"
	"github.com/starford/ansuz/internal/store"
)

// Generate runs one full generation pass: reconcile every document against
// the entry store, render pages, and write the feed, per-category feeds, and
// copied assets into the output directory.
func Generate(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger := newLogger(app.config)
	slog.SetDefault(logger)

	return generate(ctx, app, logger)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{confirm: stdinConfirm}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := app.config.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

func newLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.SlogLevel(),
	}))
}

// newConverter builds the converter selected by configuration unless one was
// injected through options.
func newConverter(app *application) (convert.Converter, error) {
	if app.converter != nil {
		return app.converter, nil
	}
	cfg := app.config.Converter
	if cfg.Engine == EngineGoldmark {
		return convert.NewGoldmark(cfg.Template)
	}
	return convert.NewPandoc(cfg.Command, cfg.Template), nil
}

func generate(ctx context.Context, app *application, logger *slog.Logger) error {
	cfg := app.config
	started := time.Now()

	base, err := cfg.Feed.AlternateBase()
	if err != nil {
		return err
	}
	conv, err := newConverter(app)
	if err != nil {
		return err
	}
	tree, err := site.NewTree(cfg.Source.Path)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	feedID, err := checkFeedIdentity(db, cfg.Feed.ID, app.confirm, logger)
	if err != nil {
		return err
	}

	docs, err := tree.Documents()
	if err != nil {
		return err
	}
	logger.Info("generate: discovered documents",
		slog.Int("count", len(docs)), slog.String("source", tree.Root()))

	engine := reconcile.New(db, conv, logger, reconcile.Params{
		SourceDir:      tree.Root(),
		AlternateBase:  base,
		PathCategories: cfg.Site.PathCategories,
		Timeout:        cfg.Converter.Timeout(),
		Workers:        cfg.Converter.Workers,
	})
	results, failures := engine.ReconcileAll(ctx, docs)

	var entries []atom.Entry
	for _, res := range results {
		if res.FeedIgnore {
			logger.Debug("generate: excluded from feed", slog.String("path", res.Path))
			continue
		}
		entries = append(entries, res.Entry)
	}

	meta := atom.FeedMeta{
		Title:         cfg.Feed.Title,
		ID:            feedID,
		Authors:       cfg.Feed.Authors,
		Contributors:  cfg.Feed.Contributors,
		SelfLink:      cfg.Feed.SelfLink,
		AlternateLink: cfg.Feed.AlternateLink,
		Icon:          cfg.Feed.Icon,
		Logo:          cfg.Feed.Logo,
		Rights:        cfg.Feed.Rights,
	}
	feed := atom.Assemble(meta, entries, time.Now(), logger)

	out, err := site.NewOutput(cfg.Output.Path)
	if err != nil {
		return err
	}

	failures = append(failures, renderPages(ctx, conv, tree, out, docs, cfg)...)

	data, err := atom.Marshal(feed)
	if err != nil {
		return fmt.Errorf("generate: marshal feed: %w", err)
	}
	if err := out.WriteFile("feed.xml", data); err != nil {
		return err
	}

	split := atom.SplitByCategory(feed)
	for _, term := range atom.Terms(split) {
		data, err := atom.Marshal(split[term])
		if err != nil {
			return fmt.Errorf("generate: marshal category feed %q: %w", term, err)
		}
		name := "category-feeds/" + atom.FileStem(term) + ".xml"
		if err := out.WriteFile(name, data); err != nil {
			return err
		}
	}

	if err := copyAssets(tree, out, logger); err != nil {
		return err
	}

	if cfg.Site.SiteMap {
		page, err := site.Sitemap(docs, base)
		if err != nil {
			return err
		}
		if err := out.WriteFile(site.SitemapPath, page); err != nil {
			return err
		}
	}

	logger.Info("generate: complete",
		slog.Int("entries", len(entries)),
		slog.Int("categories", len(split)),
		slog.Int("failures", len(failures)),
		slog.Duration("elapsed", time.Since(started)))

	if len(failures) > 0 {
		for _, f := range failures {
			logger.Error("generate: document failed",
				slog.String("path", f.Path), slog.String("error", f.Err.Error()))
		}
		return fmt.Errorf("generation finished with %d document failure(s)", len(failures))
	}
	return nil
}

// checkFeedIdentity compares the configured feed id against the stored
// permanent one. A mismatch with existing entries aborts the run; a mismatch
// on an empty store asks for confirmation before adopting the new id.
func checkFeedIdentity(db store.EntryStore, configured string, confirm func(string) bool, logger *slog.Logger) (string, error) {
	stored, err := db.FeedID()
	if err != nil {
		return "", err
	}
	if stored == "" {
		if err := db.SetFeedID(configured); err != nil {
			return "", err
		}
		return configured, nil
	}
	if stored == configured {
		return configured, nil
	}

	count, err := db.Count()
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", apperr.New(apperr.KindFeedIdentityConflict,
			"configured feed id %q differs from stored id %q with %d existing entries", configured, stored, count)
	}

	prompt := fmt.Sprintf("Feed id changed from %q to %q. Adopt the new id?", stored, configured)
	if confirm(prompt) {
		if err := db.SetFeedID(configured); err != nil {
			return "", err
		}
		logger.Info("feed identity updated", slog.String("id", configured))
		return configured, nil
	}
	logger.Warn("keeping stored feed id; update the configuration to match",
		slog.String("id", stored))
	return stored, nil
}

// renderPages converts every document into a standalone HTML page mirroring
// the source tree layout. Failures are isolated per document.
func renderPages(ctx context.Context, conv convert.Converter, tree *site.Tree, out *site.Output, docs []*parser.Document, cfg *Config) []reconcile.Failure {
	workers := cfg.Converter.Workers
	if workers <= 0 {
		workers = 1
	}
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			// The driver owns the output tree; converters only write the file.
			dest := out.PagePath(doc.Path)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				errs[i] = fmt.Errorf("generate: page dir for %s: %w", doc.Path, err)
				return nil
			}
			pageCtx := gctx
			if timeout := cfg.Converter.Timeout(); timeout > 0 {
				var cancel context.CancelFunc
				pageCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			errs[i] = conv.RenderPage(pageCtx, tree.Abs(doc.Path), dest)
			return nil
		})
	}
	_ = g.Wait()

	var failures []reconcile.Failure
	for i, doc := range docs {
		if errs[i] != nil {
			failures = append(failures, reconcile.Failure{Path: doc.Path, Err: errs[i]})
		}
	}
	return failures
}

// copyAssets mirrors non-Markdown, non-hidden files into the output tree.
func copyAssets(tree *site.Tree, out *site.Output, logger *slog.Logger) error {
	assets, err := tree.Assets()
	if err != nil {
		return err
	}
	for _, rel := range assets {
		if err := out.CopyAsset(tree, rel); err != nil {
			return err
		}
		logger.Debug("generate: copied asset", slog.String("path", rel))
	}
	return nil
}
