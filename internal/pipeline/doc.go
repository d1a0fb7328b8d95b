// Package pipeline schedules domain crawls.
//
// The domain list is partitioned into groups of a fixed size. Groups run
// sequentially and the domains inside a group run concurrently, one
// goroutine per domain, so at most group-size domains crawl at once. A group
// is finished when every domain in it has reached a terminal state.
package pipeline
