package atom

import (
	"html"
	"log/slog"
	"time"

	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/parser"
)

// FeedMeta is the feed-level metadata loaded from configuration. It is
// validated before any generation starts; Assemble only re-checks the
// optional fragments it may drop.
type FeedMeta struct {
	Title         string
	ID            string
	Authors       []parser.Person
	Contributors  []parser.Person
	SelfLink      string
	AlternateLink string
	Icon          string
	Logo          string
	Rights        string
}

// Assemble combines feed metadata with the full set of rendered entries into
// one feed document. The feed's updated time is the maximum entry updated
// time, falling back to now when there are no entries.
//
// Malformed optional fragments (persons with unsafe names, invalid URLs) are
// dropped and logged; they never abort assembly.
func Assemble(meta FeedMeta, entries []Entry, now time.Time, logger *slog.Logger) *Feed {
	feed := &Feed{
		Xmlns:        Namespace,
		ID:           meta.ID,
		Title:        NewText(meta.Title),
		Updated:      FormatTime(now),
		Authors:      Persons(meta.Authors, logger),
		Contributors: Persons(meta.Contributors, logger),
		Entries:      entries,
	}

	// RFC 3339 UTC strings compare lexicographically in time order.
	if len(entries) > 0 {
		max := entries[0].Updated
		for _, e := range entries[1:] {
			if e.Updated > max {
				max = e.Updated
			}
		}
		feed.Updated = max
	}

	if validURL(meta.SelfLink) {
		feed.Links = append(feed.Links, Link{Type: "application/atom+xml", Rel: "self", Href: meta.SelfLink})
	} else if meta.SelfLink != "" {
		logger.Warn("assemble: dropping invalid self link", slog.String("href", meta.SelfLink))
	}
	if validURL(meta.AlternateLink) {
		feed.Links = append(feed.Links, Link{Type: "text/html", Rel: "alternate", Href: meta.AlternateLink})
	} else if meta.AlternateLink != "" {
		logger.Warn("assemble: dropping invalid alternate link", slog.String("href", meta.AlternateLink))
	}

	if validURL(meta.Icon) {
		feed.Icon = meta.Icon
	}
	if validURL(meta.Logo) {
		feed.Logo = meta.Logo
	}
	if meta.Rights != "" {
		rights := NewText(meta.Rights)
		feed.Rights = &rights
	}

	return feed
}

// Persons converts front-matter person records into Atom person constructs.
// A person with an empty or escape-unstable name is skipped and logged; an
// invalid email or URL only drops that field.
func Persons(people []parser.Person, logger *slog.Logger) []Person {
	var out []Person
	for _, p := range people {
		if p.Name == "" || html.EscapeString(p.Name) != p.Name {
			logger.Warn("assemble: skipping person with unsafe name", slog.String("name", p.Name))
			continue
		}
		person := Person{Name: p.Name}
		if p.Email != "" {
			if is.Email.Validate(p.Email) == nil {
				person.Email = p.Email
			} else {
				logger.Warn("assemble: dropping invalid email", slog.String("email", p.Email))
			}
		}
		if p.URL != "" {
			if validURL(p.URL) {
				person.URI = p.URL
			} else {
				logger.Warn("assemble: dropping invalid uri", slog.String("uri", p.URL))
			}
		}
		out = append(out, person)
	}
	return out
}

func validURL(s string) bool {
	return s != "" && is.URL.Validate(s) == nil
}
