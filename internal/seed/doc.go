// Package seed reads and writes the seed list of a crawl.
//
// A seed file holds one "url,domain" pair per line. The domain may be
// omitted and is then derived from the URL. Blank lines and lines starting
// with "#" are ignored. ParseBookmarks turns a browser bookmarks export
// into seed tasks, one per link.
package seed
