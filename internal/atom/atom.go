// Package atom models Atom feed documents as typed element trees and
// serializes them with encoding/xml, so escaping is handled in exactly one
// place.
package atom

import (
	"encoding/xml"
	"html"
	"time"
)

// Namespace is the Atom XML namespace.
const Namespace = "http://www.w3.org/2005/Atom"

// Text is an Atom text construct. Type is "html" when the value contains
// markup, empty for plain text.
type Text struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// NewText builds a text construct, marking it HTML-typed iff escaping would
// change the raw string. This tells feed readers whether the value carries
// markup.
func NewText(raw string) Text {
	if escaped := html.EscapeString(raw); escaped != raw {
		return Text{Type: "html", Value: escaped}
	}
	return Text{Value: raw}
}

// Person is an Atom person construct (author or contributor).
type Person struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
	URI   string `xml:"uri,omitempty"`
}

// Link is an Atom link element.
type Link struct {
	Type string `xml:"type,attr,omitempty"`
	Rel  string `xml:"rel,attr,omitempty"`
	Href string `xml:"href,attr"`
}

// Category is an Atom category element.
type Category struct {
	Term   string `xml:"term,attr"`
	Label  string `xml:"label,attr,omitempty"`
	Scheme string `xml:"scheme,attr,omitempty"`
}

// Entry is one Atom feed item.
type Entry struct {
	XMLName      xml.Name   `xml:"entry"`
	ID           string     `xml:"id"`
	Title        Text       `xml:"title"`
	Published    string     `xml:"published,omitempty"`
	Updated      string     `xml:"updated"`
	Authors      []Person   `xml:"author"`
	Contributors []Person   `xml:"contributor"`
	Links        []Link     `xml:"link"`
	Summary      *Text      `xml:"summary"`
	Content      *Text      `xml:"content"`
	Categories   []Category `xml:"category"`
}

// Feed is the top-level Atom document.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	Xmlns        string   `xml:"xmlns,attr"`
	ID           string   `xml:"id"`
	Title        Text     `xml:"title"`
	Updated      string   `xml:"updated"`
	Authors      []Person `xml:"author"`
	Contributors []Person `xml:"contributor"`
	Links        []Link   `xml:"link"`
	Icon         string   `xml:"icon,omitempty"`
	Logo         string   `xml:"logo,omitempty"`
	Rights       *Text    `xml:"rights"`
	Entries      []Entry  `xml:"entry"`
}

// FormatTime renders a timestamp the way every date in the feed is rendered:
// RFC 3339 in UTC. The fixed format keeps lexicographic comparison of
// rendered values consistent with time order.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Marshal serializes a feed document with the XML declaration prepended.
func Marshal(feed *Feed) ([]byte, error) {
	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
