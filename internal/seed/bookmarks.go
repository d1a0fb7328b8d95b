package seed

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/comicspider/internal/model"
)

// ParseBookmarks extracts seed tasks from a browser bookmarks export (the
// Netscape bookmark HTML format). Every distinct http or https link becomes
// a task in document order; a domain bookmarked several times keeps its
// first link. Links that cannot seed a crawl, or whose comic directory label
// is taken by an earlier domain, are ignored.
func ParseBookmarks(r io.Reader) ([]model.DomainTask, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks: %w", err)
	}

	var (
		tasks  []model.DomainTask
		seen   = make(map[string]bool)
		labels = make(labelSet)
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := bookmarkHref(n); href != "" {
				task, err := model.NewDomainTask(href, "")
				if err == nil && !seen[task.DomainName] && labels.claim(task) == nil {
					seen[task.DomainName] = true
					tasks = append(tasks, task)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tasks, nil
}

// bookmarkHref returns the href of an anchor if it is an absolute http(s)
// URL. Exports also carry place:, javascript: and file: links.
func bookmarkHref(n *html.Node) string {
	for _, attr := range n.Attr {
		if !strings.EqualFold(attr.Key, "href") {
			continue
		}
		href := strings.TrimSpace(attr.Val)
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ""
		}
		return href
	}
	return ""
}
