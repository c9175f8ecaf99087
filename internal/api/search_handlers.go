package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JakeFAU/websearch/internal/content"
	"github.com/JakeFAU/websearch/internal/crawler"
)

// ParseQuery normalizes raw the way page text is tokenized and drops
// repeated words while keeping first-seen order.
func ParseQuery(raw string) []string {
	fields := content.Words(raw)
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Words   []string               `json:"words"`
	Results []crawler.SearchResult `json:"results"`
}

// searchJSON handles GET /api/search?q=&limit=. It returns 400 for an empty
// query or invalid limit and 500 when the index cannot be searched.
func (s *Server) searchJSON(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("q")
	words := ParseQuery(raw)
	if len(words) == 0 {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, err := parseLimit(r, s.cfg.MaxResults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.search(r.Context(), words, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []crawler.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: raw, Words: words, Results: results})
}

func parseLimit(r *http.Request, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return maxLimit, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}
