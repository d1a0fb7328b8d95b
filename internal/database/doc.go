// Package database stores the run history of comicspider in SQLite.
//
// A CrawlDB records, per domain run:
//   - the final DomainReport (domain_runs)
//   - every scanned page (pages)
//   - every image outcome with its hash and EXIF summary (images)
//
// CrawlDB implements crawler.Recorder, so workers write to it directly
// while they crawl. The "report" command reads it back.
//
// The driver is modernc.org/sqlite, which needs no cgo. The pool holds a
// single connection: SQLite has one writer and workers of a batch write
// concurrently.
package database
