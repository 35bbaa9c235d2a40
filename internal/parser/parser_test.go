package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontMatterAndBody(t *testing.T) {
	input := []byte(`---
title: Hello
summary: A greeting
categories:
  - term: go
    label: Golang
authors:
  - name: Bob
    email: bob@example.com
links:
  - href: https://example.org/related
    rel: related
---
# Hello
Body text.
`)
	doc := Parse("post.md", input)
	if doc.Meta == nil {
		t.Fatal("expected front matter")
	}
	if doc.Meta.Title != "Hello" {
		t.Errorf("title = %q, want %q", doc.Meta.Title, "Hello")
	}
	if doc.Meta.Summary != "A greeting" {
		t.Errorf("summary = %q", doc.Meta.Summary)
	}
	if len(doc.Meta.Categories) != 1 || doc.Meta.Categories[0].Term != "go" || doc.Meta.Categories[0].Label != "Golang" {
		t.Errorf("categories = %+v", doc.Meta.Categories)
	}
	if len(doc.Meta.Authors) != 1 || doc.Meta.Authors[0].Name != "Bob" || doc.Meta.Authors[0].Email != "bob@example.com" {
		t.Errorf("authors = %+v", doc.Meta.Authors)
	}
	if len(doc.Meta.Links) != 1 || doc.Meta.Links[0].Rel != "related" {
		t.Errorf("links = %+v", doc.Meta.Links)
	}
	if !strings.Contains(doc.Body, "Body text.") {
		t.Errorf("body = %q", doc.Body)
	}
	if strings.Contains(doc.Body, "title:") {
		t.Errorf("body still contains front matter: %q", doc.Body)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	doc := Parse("plain.md", input)
	if doc.Meta != nil {
		t.Errorf("expected nil meta, got %+v", doc.Meta)
	}
	if doc.Body != string(input) {
		t.Errorf("body = %q, want full input", doc.Body)
	}
	if doc.FeedCandidate() {
		t.Error("document without front matter must not be a feed candidate")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	doc := Parse("broken.md", input)
	// Malformed front matter falls back to body-only.
	if doc.Meta != nil {
		t.Errorf("expected nil meta on invalid YAML, got %+v", doc.Meta)
	}
	if doc.Body != string(input) {
		t.Errorf("body = %q, want full input", doc.Body)
	}
}

func TestParse_ExtraKeysPreserved(t *testing.T) {
	input := []byte("---\ntitle: T\ncustom_key: custom value\n---\nbody\n")
	doc := Parse("extra.md", input)
	if doc.Meta == nil {
		t.Fatal("expected front matter")
	}
	if got := doc.Meta.Extra["custom_key"]; got != "custom value" {
		t.Errorf("extra[custom_key] = %v", got)
	}
}

func TestTitle_FallbackToHeading(t *testing.T) {
	doc := Parse("h.md", []byte("---\nsummary: no title here\n---\n# From Heading\ntext\n"))
	if got := doc.Title(); got != "From Heading" {
		t.Errorf("title = %q, want %q", got, "From Heading")
	}
}

func TestTitle_FrontMatterWins(t *testing.T) {
	doc := Parse("t.md", []byte("---\ntitle: Meta Title\n---\n# Heading Title\n"))
	if got := doc.Title(); got != "Meta Title" {
		t.Errorf("title = %q, want %q", got, "Meta Title")
	}
}

func TestTitle_Empty(t *testing.T) {
	doc := Parse("e.md", []byte("---\nsummary: s\n---\nno heading\n"))
	if got := doc.Title(); got != "" {
		t.Errorf("title = %q, want empty", got)
	}
}

func TestFeedCandidate_Ignore(t *testing.T) {
	doc := Parse("i.md", []byte("---\ntitle: T\nfeed_ignore: true\n---\nbody\n"))
	if doc.Meta == nil {
		t.Fatal("expected front matter")
	}
	if doc.FeedCandidate() {
		t.Error("feed_ignore document must not be a feed candidate")
	}
}
