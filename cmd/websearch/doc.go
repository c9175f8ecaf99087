// Package main hosts the websearch executable.
//
// Architecture overview:
//   - crawl: seeds a frontier with spider.start_url and runs spider.worker_count
//     workers. Each worker fetches through the colly fetcher, extracts links
//     within spider.max_depth, tokenizes the page text and writes the document
//     plus its word frequencies in one index transaction.
//   - serve: exposes the search form, ranked results and a JSON search route
//     over the same index, with /healthz, /readyz and /metrics alongside.
//   - migrate: creates the index schema and tables when they are missing.
//
// Configuration comes from a YAML file passed with --config, overridable with
// WEBSEARCH_* environment variables (for example WEBSEARCH_DATABASE_DSN or
// WEBSEARCH_SPIDER_WORKER_COUNT). database.driver selects postgres or the
// in-process memory store, which only lives as long as one command.
//
// SIGINT and SIGTERM cancel the running command. A canceled crawl closes its
// frontier, lets in-flight pages finish or fail, and reports a partial summary.
package main
