package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/websearch/internal/crawler"
)

type document struct {
	id      int64
	content string
}

type frequencyKey struct {
	documentID int64
	wordID     int64
}

// IndexStore provides an in-memory index for development/testing.
// Transactions are serialized; writes become visible on commit.
type IndexStore struct {
	mu          sync.RWMutex
	documents   map[string]document
	urls        map[int64]string
	words       map[string]int64
	frequencies map[frequencyKey]int
	nextDocID   int64
	nextWordID  int64
}

// NewIndexStore constructs an IndexStore.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		documents:   make(map[string]document),
		urls:        make(map[int64]string),
		words:       make(map[string]int64),
		frequencies: make(map[frequencyKey]int),
	}
}

// EnsureSchema is a no-op; the maps are ready on construction.
func (s *IndexStore) EnsureSchema(context.Context) error { return nil }

// Ping always succeeds.
func (s *IndexStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *IndexStore) Close() {}

// WithinTx runs fn against a staging area and merges it into the store only
// when fn succeeds.
func (s *IndexStore) WithinTx(ctx context.Context, fn func(crawler.IndexTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin: %w", crawler.ErrPersistence, err)
	}

	tx := &indexTx{
		store:       s,
		documents:   make(map[string]document),
		words:       make(map[string]int64),
		frequencies: make(map[frequencyKey]int),
		nextDocID:   s.nextDocID,
		nextWordID:  s.nextWordID,
	}
	if err := fn(tx); err != nil {
		if errors.Is(err, crawler.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
	}
	tx.commit()
	return nil
}

// Search returns documents containing any of words, ranked by the summed
// frequency of those words.
func (s *IndexStore) Search(_ context.Context, words []string, limit int) ([]crawler.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(words))
	for _, w := range words {
		if id, ok := s.words[w]; ok {
			wanted[id] = struct{}{}
		}
	}
	totals := make(map[string]int64)
	for key, freq := range s.frequencies {
		if _, ok := wanted[key.wordID]; ok {
			totals[s.urls[key.documentID]] += int64(freq)
		}
	}

	results := make([]crawler.SearchResult, 0, len(totals))
	for url, total := range totals {
		results = append(results, crawler.SearchResult{URL: url, TotalFrequency: total})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalFrequency != results[j].TotalFrequency {
			return results[i].TotalFrequency > results[j].TotalFrequency
		}
		return results[i].URL < results[j].URL
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Document returns the stored row for url.
func (s *IndexStore) Document(url string) (int64, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[url]
	return doc.id, doc.content, ok
}

// DocumentCount returns the number of stored documents.
func (s *IndexStore) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Frequencies returns a copy of the word counts stored for url.
func (s *IndexStore) Frequencies(url string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[url]
	if !ok {
		return nil
	}
	byID := make(map[int64]string, len(s.words))
	for w, id := range s.words {
		byID[id] = w
	}
	out := make(map[string]int)
	for key, freq := range s.frequencies {
		if key.documentID == doc.id {
			out[byID[key.wordID]] = freq
		}
	}
	return out
}

// indexTx stages writes while the store lock is held by WithinTx.
type indexTx struct {
	store       *IndexStore
	documents   map[string]document
	words       map[string]int64
	frequencies map[frequencyKey]int
	nextDocID   int64
	nextWordID  int64
}

func (t *indexTx) SaveDocument(_ context.Context, url, content string) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("%w: save document: empty url", crawler.ErrPersistence)
	}
	if doc, ok := t.store.documents[url]; ok {
		return doc.id, nil
	}
	if doc, ok := t.documents[url]; ok {
		return doc.id, nil
	}
	t.nextDocID++
	t.documents[url] = document{id: t.nextDocID, content: content}
	return t.nextDocID, nil
}

func (t *indexTx) SaveWordFrequency(_ context.Context, documentID int64, word string, frequency int) error {
	if !t.knownDocument(documentID) {
		return fmt.Errorf("%w: save frequency %q: unknown document %d", crawler.ErrPersistence, word, documentID)
	}
	wordID, ok := t.store.words[word]
	if !ok {
		wordID, ok = t.words[word]
	}
	if !ok {
		t.nextWordID++
		wordID = t.nextWordID
		t.words[word] = wordID
	}
	key := frequencyKey{documentID: documentID, wordID: wordID}
	if _, ok := t.store.frequencies[key]; ok {
		return nil
	}
	if _, ok := t.frequencies[key]; ok {
		return nil
	}
	t.frequencies[key] = frequency
	return nil
}

func (t *indexTx) knownDocument(id int64) bool {
	if _, ok := t.store.urls[id]; ok {
		return true
	}
	for _, doc := range t.documents {
		if doc.id == id {
			return true
		}
	}
	return false
}

func (t *indexTx) commit() {
	s := t.store
	for url, doc := range t.documents {
		s.documents[url] = doc
		s.urls[doc.id] = url
	}
	for w, id := range t.words {
		s.words[w] = id
	}
	for key, freq := range t.frequencies {
		s.frequencies[key] = freq
	}
	s.nextDocID = t.nextDocID
	s.nextWordID = t.nextWordID
}

var (
	_ crawler.IndexWriter = (*IndexStore)(nil)
	_ crawler.Searcher    = (*IndexStore)(nil)
)
