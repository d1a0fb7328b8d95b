// Package trash keeps track of images that were set aside during a crawl.
//
// A Registry holds the trash entries and kept images of a single domain run.
// An AppendLog is a line-oriented file shared by every domain running in the
// process: the quarantine log ("url, size" per line) and the concerns log
// (domains with a low image yield) are both AppendLogs. Each line is written
// with a single call while holding a mutex, so concurrent writers never
// interleave partial records.
package trash
