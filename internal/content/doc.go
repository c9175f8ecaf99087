// Package content turns a fetched page into crawl inputs: the absolute URLs
// it links to and the word frequencies the index stores for it.
package content
