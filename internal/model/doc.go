// Package model defines the data structures shared by the crawler, the
// batch scheduler, the run history database and the report writers.
//
// This package contains the following main types:
//   - DomainTask: one seed URL and the domain that scopes its crawl
//   - ImageCandidate: an image fetched for a filename while crawling
//   - TrashEntry: an image URL set aside as a duplicate or undersized file
//   - DomainReport: the outcome of crawling a single domain
//
// The types carry no behavior beyond small helpers so every other package
// can depend on them without import cycles.
package model
