package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	whatwg "github.com/nlnwa/whatwg-url/url"
)

type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"hasAlt"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// Images lists img elements with their sources resolved against pageURL.
// Sources that cannot be resolved are skipped.
func Images(doc *goquery.Document, pageURL string) []Image {
	images := []Image{}

	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}

		resolved, err := whatwg.ParseRef(pageURL, src)
		if err != nil {
			return
		}

		alt, hasAlt := s.Attr("alt")
		images = append(images, Image{
			URL:    resolved.Href(false),
			Alt:    strings.TrimSpace(alt),
			HasAlt: hasAlt,
			Title:  s.AttrOr("title", ""),
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
	})

	return images
}

// MissingAlt counts images with no alt attribute. An empty alt marks a
// decorative image and is not counted.
func MissingAlt(images []Image) int {
	missing := 0
	for _, image := range images {
		if !image.HasAlt {
			missing++
		}
	}
	return missing
}
