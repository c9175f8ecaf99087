// Package api hosts the query server: the HTML search form, the ranked result
// page, a JSON search endpoint and the operational routes. Notable routes:
//   - GET / renders the search form; POST / runs the query from the form.
//   - GET /api/search?q=&limit= returns ranked results as JSON.
//   - GET /healthz and /readyz for probes (readyz pings the index store).
//   - GET /metrics for Prometheus scraping.
package api
