package atom

import (
	"net/url"
	"sort"
)

// SplitByCategory derives one feed document per category term from an
// assembled feed. An entry carrying N categories appears in N per-term
// feeds; an entry with none appears in none of them.
//
// Each derived feed keeps the original metadata but swaps the entry set and
// rewrites the self and alternate links to the term-specific paths
// /category-feeds/{term}.xml and /category/{term}.html under the original
// link's origin. Terms are percent-encoded in the rewritten paths, matching
// the escaping used for the output filenames.
func SplitByCategory(feed *Feed) map[string]*Feed {
	groups := make(map[string][]Entry)
	for _, entry := range feed.Entries {
		seen := make(map[string]struct{}, len(entry.Categories))
		for _, cat := range entry.Categories {
			if cat.Term == "" {
				continue
			}
			if _, dup := seen[cat.Term]; dup {
				continue
			}
			seen[cat.Term] = struct{}{}
			groups[cat.Term] = append(groups[cat.Term], entry)
		}
	}

	out := make(map[string]*Feed, len(groups))
	for term, entries := range groups {
		derived := *feed
		derived.Entries = entries
		derived.Links = rewriteLinks(feed.Links, term)
		derived.Updated = maxUpdated(entries, feed.Updated)
		out[term] = &derived
	}
	return out
}

// Terms returns the category terms of a split result in sorted order, for
// deterministic output and logging.
func Terms(split map[string]*Feed) []string {
	terms := make([]string, 0, len(split))
	for t := range split {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// FileStem returns the filesystem-safe stem used for a per-term feed file.
func FileStem(term string) string {
	return url.PathEscape(term)
}

func rewriteLinks(links []Link, term string) []Link {
	out := make([]Link, len(links))
	copy(out, links)
	for i, l := range out {
		origin, err := url.Parse(l.Href)
		if err != nil || origin.Scheme == "" || origin.Host == "" {
			continue
		}
		base := origin.Scheme + "://" + origin.Host
		switch l.Rel {
		case "self":
			out[i].Href = base + "/category-feeds/" + FileStem(term) + ".xml"
		case "alternate":
			out[i].Href = base + "/category/" + FileStem(term) + ".html"
		}
	}
	return out
}

func maxUpdated(entries []Entry, fallback string) string {
	if len(entries) == 0 {
		return fallback
	}
	max := entries[0].Updated
	for _, e := range entries[1:] {
		if e.Updated > max {
			max = e.Updated
		}
	}
	return max
}
