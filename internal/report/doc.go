// Package report renders crawl summaries.
//
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: tables, alerts and a mermaid pie chart
//   - JSONWriter: structured output for other tools
//
// Writers implement the Writer interface and can be combined with
// MultiWriter to print a summary and save it at the same time.
package report
