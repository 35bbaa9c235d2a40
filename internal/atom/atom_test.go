package atom

import (
	"strings"
	"testing"
	"time"
)

func TestNewText_Plain(t *testing.T) {
	text := NewText("Plain title")
	if text.Type != "" {
		t.Errorf("type = %q, want empty", text.Type)
	}
	if text.Value != "Plain title" {
		t.Errorf("value = %q", text.Value)
	}
}

func TestNewText_HTMLTyped(t *testing.T) {
	text := NewText("Tom & Jerry <b>bold</b>")
	if text.Type != "html" {
		t.Errorf("type = %q, want html", text.Type)
	}
	if !strings.Contains(text.Value, "&amp;") || !strings.Contains(text.Value, "&lt;b&gt;") {
		t.Errorf("value = %q, want escaped markup", text.Value)
	}
}

func TestFormatTime_UTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	got := FormatTime(time.Date(2024, 3, 1, 13, 0, 0, 0, loc))
	if got != "2024-03-01T12:00:00Z" {
		t.Errorf("FormatTime = %q", got)
	}
}

func TestMarshal_EscapesContent(t *testing.T) {
	content := Text{Type: "html", Value: "<p>hi & bye</p>"}
	feed := &Feed{
		Xmlns:   Namespace,
		ID:      "urn:x",
		Title:   NewText("T"),
		Updated: FormatTime(time.Now()),
		Entries: []Entry{{
			ID:      "urn:uuid:1",
			Title:   NewText("Hi"),
			Updated: "2024-01-01T00:00:00Z",
			Content: &content,
		}},
	}

	data, err := Marshal(feed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)

	if !strings.HasPrefix(s, "<?xml") {
		t.Error("missing XML declaration")
	}
	if !strings.Contains(s, `xmlns="http://www.w3.org/2005/Atom"`) {
		t.Error("missing Atom namespace")
	}
	if !strings.Contains(s, `&lt;p&gt;hi &amp; bye&lt;/p&gt;`) {
		t.Errorf("content not escaped exactly once:\n%s", s)
	}
	if !strings.Contains(s, `<title>Hi</title>`) {
		t.Errorf("plain title should carry no type attribute:\n%s", s)
	}
}

func TestMarshal_OmitsEmptyOptionalElements(t *testing.T) {
	feed := &Feed{
		Xmlns:   Namespace,
		ID:      "urn:x",
		Title:   NewText("T"),
		Updated: FormatTime(time.Now()),
	}
	data, err := Marshal(feed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, absent := range []string{"<icon>", "<logo>", "<rights", "<entry>"} {
		if strings.Contains(s, absent) {
			t.Errorf("unexpected %s element:\n%s", absent, s)
		}
	}
}
