// Package crawler holds the vocabulary shared by the spider, its workers and
// the storage layer: work items, fetch types, the error taxonomy, the
// index/search contracts, and the pure URL resolver used to turn discovered
// hrefs into canonical absolute URLs.
package crawler
