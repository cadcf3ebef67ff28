package linkcheck

import "sitepulse/extract"

// BrokenLinkEntry is a broken link joined with the record it was found as.
type BrokenLinkEntry struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	IsExternal bool   `json:"isExternal"`
}

type BrokenLinksSummary struct {
	CheckedLinks         []extract.LinkRecord
	BrokenLinks          []BrokenLinkEntry
	TotalDiscoveredLinks int
}

func (s BrokenLinksSummary) TotalChecked() int {
	return len(s.CheckedLinks)
}

func (s BrokenLinksSummary) BrokenCount() int {
	return len(s.BrokenLinks)
}

// DefaultMaxLinks caps the links probed for one page.
const DefaultMaxLinks = 50

// Truncate returns at most the first limit links. A limit of zero or less
// falls back to DefaultMaxLinks.
func Truncate(links []extract.LinkRecord, limit int) []extract.LinkRecord {
	if limit <= 0 {
		limit = DefaultMaxLinks
	}
	if len(links) <= limit {
		return links
	}
	return links[:limit:limit]
}

// Summarize joins checked and statuses by position. statuses[i] must be the
// outcome of checked[i]; unmatched trailing entries are ignored.
func Summarize(checked []extract.LinkRecord, statuses []LinkStatus, totalDiscovered int) BrokenLinksSummary {
	broken := []BrokenLinkEntry{}
	for i, link := range checked {
		if i >= len(statuses) {
			break
		}
		status := statuses[i]
		if !status.IsBroken {
			continue
		}
		broken = append(broken, BrokenLinkEntry{
			URL:        status.URL,
			Text:       link.DisplayText,
			Status:     status.HTTPStatus,
			StatusText: status.StatusText,
			IsExternal: link.IsExternal,
		})
	}

	return BrokenLinksSummary{
		CheckedLinks:         checked,
		BrokenLinks:          broken,
		TotalDiscoveredLinks: totalDiscovered,
	}
}
