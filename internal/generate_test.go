package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/testutil"
)

const postSource = "---\ntitle: Hi\n---\n\nhello world\n"

func testConfig(t *testing.T) *Config {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-gen-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	cfg := NewDefaultConfig()
	cfg.Source.Path = t.TempDir()
	cfg.Output.Path = t.TempDir()
	cfg.SQLite.Path = dbFile.Name()
	cfg.Feed = FeedConfig{
		Title:         "Test Feed",
		ID:            "urn:uuid:feed-a",
		Authors:       []parser.Person{{Name: "Bob"}},
		SelfLink:      "https://example.com/feed.xml",
		AlternateLink: "https://example.com/",
	}
	return cfg
}

func runGenerate(t *testing.T, cfg *Config, conv *testutil.StaticConverter) error {
	t.Helper()
	return Generate(context.Background(),
		WithConfig(cfg),
		WithConverter(conv),
		WithConfirm(func(string) bool { return false }),
	)
}

func readOutput(t *testing.T, cfg *Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Output.Path, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func openStore(t *testing.T, cfg *Config) *store.DB {
	t.Helper()
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerate_FullRun(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "a/b/post.md", postSource)
	conv := &testutil.StaticConverter{Fragment: "<p>hello world</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	db := openStore(t, cfg)
	rec, err := db.Get("a/b/post.md")
	if err != nil || rec == nil {
		t.Fatalf("store row missing: %v", err)
	}
	if !rec.Published.Equal(rec.Updated) {
		t.Errorf("published %v != updated %v for a new entry", rec.Published, rec.Updated)
	}

	feed := readOutput(t, cfg, "feed.xml")
	if !strings.Contains(feed, "<title>Test Feed</title>") {
		t.Errorf("feed missing feed title:\n%s", feed)
	}
	if !strings.Contains(feed, "<title>Hi</title>") {
		t.Errorf("feed missing entry title:\n%s", feed)
	}
	if !strings.Contains(feed, "<id>urn:uuid:feed-a</id>") {
		t.Errorf("feed missing feed id:\n%s", feed)
	}
	if !strings.Contains(feed, `term="a"`) || !strings.Contains(feed, `term="b"`) {
		t.Errorf("feed missing path categories:\n%s", feed)
	}

	for _, name := range []string{"category-feeds/a.xml", "category-feeds/b.xml"} {
		sub := readOutput(t, cfg, name)
		if !strings.Contains(sub, "<title>Hi</title>") {
			t.Errorf("%s missing entry:\n%s", name, sub)
		}
	}
	if sub := readOutput(t, cfg, "category-feeds/a.xml"); !strings.Contains(sub, `href="https://example.com/category-feeds/a.xml"`) {
		t.Errorf("category self link not rewritten:\n%s", sub)
	}

	if page := readOutput(t, cfg, "a/b/post.html"); page != "<p>hello world</p>" {
		t.Errorf("page = %q", page)
	}
}

func TestGenerate_CreatesNestedPageDirectories(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "deep/er/post.md", postSource)
	// StaticConverter, like pandoc, writes only the file; the driver must
	// have created deep/er/ under the output root first.
	conv := &testutil.StaticConverter{Fragment: "<p>nested</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if page := readOutput(t, cfg, "deep/er/post.html"); page != "<p>nested</p>" {
		t.Errorf("page = %q", page)
	}
}

func TestGenerate_SecondRunIsStable(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "post.md", postSource)
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := readOutput(t, cfg, "feed.xml")

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := readOutput(t, cfg, "feed.xml")

	// Feed updated may differ only if entries changed; with no changes the
	// entry set pins it, so both documents are byte-identical.
	if first != second {
		t.Errorf("unchanged source produced a different feed:\n%s\nvs\n%s", first, second)
	}
}

func TestGenerate_BodyChangeAdvancesUpdatedOnly(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "post.md", postSource)
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("first run: %v", err)
	}
	db := openStore(t, cfg)
	before, _ := db.Get("post.md")
	db.Close()

	time.Sleep(20 * time.Millisecond)
	testutil.WriteDoc(t, cfg.Source.Path, "post.md", postSource+"\nmore\n")

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("second run: %v", err)
	}
	after, _ := openStore(t, cfg).Get("post.md")

	if after.ID != before.ID {
		t.Errorf("id changed: %q -> %q", before.ID, after.ID)
	}
	if !after.Published.Equal(before.Published) {
		t.Errorf("published changed: %v -> %v", before.Published, after.Published)
	}
	if !after.Updated.After(before.Updated) {
		t.Errorf("updated did not advance: %v -> %v", before.Updated, after.Updated)
	}
}

func TestGenerate_FeedIdentityConflictAborts(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "post.md", postSource)
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("first run: %v", err)
	}
	original := readOutput(t, cfg, "feed.xml")

	cfg.Feed.ID = "urn:uuid:feed-b"
	err := runGenerate(t, cfg, conv)
	if err == nil {
		t.Fatal("expected feed identity conflict")
	}
	if apperr.KindOf(err) != apperr.KindFeedIdentityConflict {
		t.Errorf("kind = %v", apperr.KindOf(err))
	}

	// The conflict is detected before any output is written.
	if got := readOutput(t, cfg, "feed.xml"); got != original {
		t.Error("conflicting run overwrote the feed")
	}
}

func TestGenerate_FeedIDChangeOnEmptyStore(t *testing.T) {
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	// Decline: the stored id keeps winning.
	cfg := testConfig(t)
	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	cfg.Feed.ID = "urn:uuid:feed-b"
	err := Generate(context.Background(),
		WithConfig(cfg), WithConverter(conv),
		WithConfirm(func(string) bool { return false }))
	if err != nil {
		t.Fatalf("declined run: %v", err)
	}
	if feed := readOutput(t, cfg, "feed.xml"); !strings.Contains(feed, "<id>urn:uuid:feed-a</id>") {
		t.Errorf("declined change should keep stored id:\n%s", feed)
	}

	// Accept: the configured id is adopted and persisted.
	cfg2 := testConfig(t)
	if err := runGenerate(t, cfg2, conv); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	cfg2.Feed.ID = "urn:uuid:feed-b"
	err = Generate(context.Background(),
		WithConfig(cfg2), WithConverter(conv),
		WithConfirm(func(string) bool { return true }))
	if err != nil {
		t.Fatalf("accepted run: %v", err)
	}
	if feed := readOutput(t, cfg2, "feed.xml"); !strings.Contains(feed, "<id>urn:uuid:feed-b</id>") {
		t.Errorf("accepted change should adopt new id:\n%s", feed)
	}
	if id, _ := openStore(t, cfg2).FeedID(); id != "urn:uuid:feed-b" {
		t.Errorf("stored feed id = %q", id)
	}
}

func TestGenerate_FeedIgnoreExcludedFromFeedOnly(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "visible.md", postSource)
	testutil.WriteDoc(t, cfg.Source.Path, "secret.md",
		"---\ntitle: Secret\nfeed_ignore: true\n---\n\nshh\n")
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	feed := readOutput(t, cfg, "feed.xml")
	if strings.Contains(feed, "Secret") {
		t.Errorf("feed_ignore document leaked into the feed:\n%s", feed)
	}
	// The page is still rendered and the store row maintained.
	if _, err := os.Stat(filepath.Join(cfg.Output.Path, "secret.html")); err != nil {
		t.Errorf("ignored document page missing: %v", err)
	}
	if rec, _ := openStore(t, cfg).Get("secret.md"); rec == nil {
		t.Error("ignored document has no store row")
	}
}

func TestGenerate_ConversionFailureIsNonFatal(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteDoc(t, cfg.Source.Path, "post.md", postSource)
	conv := &testutil.StaticConverter{
		Err: apperr.New(apperr.KindConversionFailure, "convert: boom"),
	}

	err := runGenerate(t, cfg, conv)
	if err == nil {
		t.Fatal("expected failure summary error")
	}
	if !strings.Contains(err.Error(), "document failure") {
		t.Errorf("err = %v", err)
	}
	// The feed is still written, just without the failed entry.
	feed := readOutput(t, cfg, "feed.xml")
	if strings.Contains(feed, "<entry>") {
		t.Errorf("failed entry leaked into feed:\n%s", feed)
	}
}

func TestGenerate_AssetsAndSitemap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site.SiteMap = true
	testutil.WriteDoc(t, cfg.Source.Path, "a/post.md", postSource)
	testutil.WriteDoc(t, cfg.Source.Path, "a/diagram.png", "not really a png")
	testutil.WriteDoc(t, cfg.Source.Path, ".hidden/skip.md", postSource)
	conv := &testutil.StaticConverter{Fragment: "<p>x</p>"}

	if err := runGenerate(t, cfg, conv); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := readOutput(t, cfg, "a/diagram.png"); got != "not really a png" {
		t.Errorf("asset = %q", got)
	}
	sitemap := readOutput(t, cfg, "links.html")
	if !strings.Contains(sitemap, "https://example.com/a/post.html") {
		t.Errorf("sitemap missing page link:\n%s", sitemap)
	}
	if strings.Contains(sitemap, "hidden") {
		t.Errorf("hidden document leaked into sitemap:\n%s", sitemap)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Path, ".hidden")); !os.IsNotExist(err) {
		t.Error("hidden tree should not be rendered")
	}
}

func TestGenerate_RequiresConfig(t *testing.T) {
	if err := Generate(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}
