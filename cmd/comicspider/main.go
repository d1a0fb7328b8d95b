// Package main provides the entry point for the comicspider CLI.
//
// comicspider crawls a list of webcomic sites, keeps the comic images of
// each site in its own directory and moves undersized images (thumbnails,
// icons, banners) to a trash directory.
//
// Usage:
//
//	comicspider run [source-file]
//	comicspider import bookmarks.html
//	comicspider report
//
// See --help for all available options.
package main

func main() {
	Execute()
}
