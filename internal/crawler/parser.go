package crawler

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links, image references and meta refresh directives from
// an HTML page.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative references.
	baseURL string
}

// ParseResult contains everything the crawler needs from one page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains absolute, de-duplicated <a href> targets in document
	// order. Fragment links are already dropped.
	Links []string

	// Images contains the raw src attribute of every <img>, in document
	// order. The ImageResolver normalizes them.
	Images []string

	// Refresh is the absolute target of the first meta refresh directive
	// that carries a URL, or "".
	Refresh string
}

// NewParser creates a parser for a page fetched from baseURL.
func NewParser(baseURL string) *Parser {
	return &Parser{baseURL: baseURL}
}

// Parse parses HTML content. Malformed markup is tolerated by the HTML
// tokenizer; only read errors are returned.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:  make([]string, 0),
		Images: make([]string, 0),
	}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result, seen)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult, seen map[string]struct{}) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		href, ok := getAttr(n, "href")
		if !ok {
			return
		}
		link := ResolveReference(p.baseURL, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		result.Links = append(result.Links, link)

	case "img":
		if src, ok := getAttr(n, "src"); ok && strings.TrimSpace(src) != "" {
			result.Images = append(result.Images, src)
		}

	case "meta":
		if result.Refresh != "" {
			return
		}
		equiv, _ := getAttr(n, "http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return
		}
		content, _ := getAttr(n, "content")
		target, err := RefreshTarget(content)
		if err != nil {
			return
		}
		result.Refresh = ResolveReference(p.baseURL, target)
	}
}

// RefreshTarget extracts the URL of a meta refresh content attribute such as
// "0;url=http://b.test/". The target is everything after the first '=', so
// query strings keep their own '=' characters. Surrounding spaces and quotes
// are removed.
func RefreshTarget(content string) (string, error) {
	parts := strings.SplitN(content, "=", 2)
	if len(parts) != 2 {
		return "", ErrNoRedirectTarget
	}
	target := strings.Trim(parts[1], " \t\r\n'\"")
	if target == "" {
		return "", ErrNoRedirectTarget
	}
	return target, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
