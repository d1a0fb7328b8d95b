// Package log builds the slog loggers of comicspider.
//
// Every logger masks sensitive attributes through SecureHandler: per-domain
// cookies and headers from the configuration file must never reach the
// console or the log file. FanoutHandler duplicates records so the crawl
// log can go to stderr and to a file at the same time.
//
// # Usage
//
//	logger, closer, err := log.New(verbose, "comicspider.log")
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//	logger.Info("worker starting", "domain", "xkcd.com")
package log
