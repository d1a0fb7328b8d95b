// Package crawler implements the per-domain crawl engine.
//
// A Worker drives one domain through the states Idle, Seeding, Crawling,
// Cleaning and Done. While crawling it pops URLs from a Frontier in
// breadth-first order, fetches each page with a PageFetcher, queues the
// in-scope links and hands every image reference to an ImageResolver that
// runs as its own goroutine.
//
// # Components
//
//   - Frontier: FIFO queue plus visited set, filtered by a Scope
//   - PageFetcher: GET, HTML parse and bounded meta refresh following
//   - ImageResolver: streamed image download with create-if-absent writes
//   - AverageTracker: running mean of kept image sizes
//   - Worker: the state machine and the end of run cleanup
//
// Image tasks of a domain are joined before cleanup starts, so cleanup
// never races against a file that is still being written.
//
// # Usage
//
//	w := crawler.NewWorker(client, task,
//		crawler.WithOutputDir("comics"),
//		crawler.WithTrashLog(trashLog),
//	)
//	report := w.Run(ctx)
package crawler
