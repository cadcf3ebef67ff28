package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	whatwg "github.com/nlnwa/whatwg-url/url"
)

// LinkRecord is one hyperlink discovered on a page, resolved to an absolute
// URL. Within a single extraction result AbsoluteURL is unique.
type LinkRecord struct {
	AbsoluteURL string `json:"url"`
	DisplayText string `json:"text"`
	IsExternal  bool   `json:"isExternal"`
}

// ExtractionError reports that a page could not be turned into links at all.
type ExtractionError struct {
	SourceURL string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract links from %s: %v", e.SourceURL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// skipPrefixes mark hrefs that point nowhere fetchable.
var skipPrefixes = []string{"javascript:", "#", "mailto:"}

// ExtractLinks parses rawHTML and returns its anchors in document order,
// resolved against sourceURL and deduplicated by absolute URL.
func ExtractLinks(rawHTML, sourceURL string) ([]LinkRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &ExtractionError{SourceURL: sourceURL, Err: err}
	}
	return Links(doc, sourceURL)
}

// Links extracts from an already parsed document.
func Links(doc *goquery.Document, sourceURL string) ([]LinkRecord, error) {
	base, err := whatwg.Parse(sourceURL)
	if err != nil {
		return nil, &ExtractionError{SourceURL: sourceURL, Err: err}
	}
	baseOrigin := origin(base)

	links := []LinkRecord{}
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if skipHref(href) {
			return
		}

		resolved, err := whatwg.ParseRef(sourceURL, href)
		if err != nil {
			return
		}

		absoluteURL := resolved.Href(false)
		if _, dup := seen[absoluteURL]; dup {
			return
		}
		seen[absoluteURL] = struct{}{}

		text := strings.TrimSpace(s.Text())
		if text == "" {
			text = href
		}

		linkOrigin := origin(resolved)
		links = append(links, LinkRecord{
			AbsoluteURL: absoluteURL,
			DisplayText: text,
			IsExternal:  linkOrigin == "" || linkOrigin != baseOrigin,
		})
	})

	return links, nil
}

func skipHref(href string) bool {
	if href == "" {
		return true
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// origin returns scheme://host[:port] for schemes with a tuple origin and ""
// for opaque origins, which never compare equal to anything.
func origin(u *whatwg.Url) string {
	switch u.Protocol() {
	case "http:", "https:", "ws:", "wss:", "ftp:":
		return u.Protocol() + "//" + u.Host()
	}
	return ""
}

// CountLinks splits links into internal and external totals.
func CountLinks(links []LinkRecord) (internal, external int) {
	for _, link := range links {
		if link.IsExternal {
			external++
		} else {
			internal++
		}
	}
	return internal, external
}
