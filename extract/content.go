package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxH1Tags        = 5
	maxTextContent   = 5000
	defaultPageTitle = "No title found"
)

// ContentSnapshot holds the structured fields of a page handed to the
// content analyzer.
type ContentSnapshot struct {
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	MetaDescription  string    `json:"metaDescription"`
	H1Tags           []string  `json:"h1Tags"`
	Headings         []Heading `json:"headings"`
	TextContent      string    `json:"textContent"`
	Excerpt          string    `json:"excerpt,omitempty"`
	Markdown         string    `json:"markdown"`
	Images           []Image   `json:"images"`
	ImagesMissingAlt int       `json:"imagesMissingAlt"`
}

type Heading struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Snapshot parses rawHTML fetched from pageURL into a ContentSnapshot.
func Snapshot(rawHTML, pageURL string) (*ContentSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &ExtractionError{SourceURL: pageURL, Err: err}
	}

	images := Images(doc, pageURL)
	snapshot := &ContentSnapshot{
		URL:              pageURL,
		Title:            Title(doc),
		MetaDescription:  MetaDescription(doc),
		H1Tags:           H1Tags(doc),
		Headings:         Headings(doc),
		TextContent:      TextContent(doc),
		Images:           images,
		ImagesMissingAlt: MissingAlt(images),
	}

	snapshot.Markdown, snapshot.Excerpt = readableMarkdown(rawHTML, pageURL, doc)
	return snapshot, nil
}

func Title(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return defaultPageTitle
	}
	return title
}

func MetaDescription(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("meta[name='description']").First().AttrOr("content", ""))
}

// H1Tags returns the text of the first few non-empty h1 elements.
func H1Tags(doc *goquery.Document) []string {
	tags := []string{}
	doc.Find("h1").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			tags = append(tags, text)
		}
		return len(tags) < maxH1Tags
	})
	return tags
}

func Headings(doc *goquery.Document) []Heading {
	headings := []Heading{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			headings = append(headings, Heading{
				Level: strings.ToUpper(goquery.NodeName(s)),
				Text:  text,
			})
		}
	})
	return headings
}

// TextContent returns the visible text of the page with whitespace collapsed,
// skipping script and style elements, capped at maxTextContent characters.
func TextContent(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return truncateRunes(text, maxTextContent)
}

// Markdown converts the whole body to Markdown. A body that cannot be
// rendered or converted yields an empty string.
func Markdown(doc *goquery.Document, domain string) string {
	bodyHTML, err := doc.Find("body").Html()
	if err != nil {
		return ""
	}
	converter := md.NewConverter(domain, true, nil)
	markdown, err := converter.ConvertString(bodyHTML)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(markdown)
}

// readableMarkdown converts the main article of the page to Markdown, falling
// back to the whole body when no article can be isolated.
func readableMarkdown(rawHTML, pageURL string, doc *goquery.Document) (markdown, excerpt string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Markdown(doc, ""), ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return Markdown(doc, parsedURL.Host), ""
	}

	converter := md.NewConverter(parsedURL.Host, true, nil)
	markdown, err = converter.ConvertString(article.Content)
	if err != nil {
		return Markdown(doc, parsedURL.Host), article.Excerpt
	}
	return strings.TrimSpace(markdown), article.Excerpt
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
