// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/websearch/internal/crawler"
)

// DefaultSchema holds the documents, words and word_frequencies tables.
const DefaultSchema = "search_engine"

var validSchemaName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IndexStoreConfig controls the Postgres connection pool used for the index.
type IndexStoreConfig struct {
	DSN             string
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// IndexStore writes crawled pages and their word frequencies into Postgres
// and serves ranked searches over them.
type IndexStore struct {
	pool   pool
	schema string
}

// NewIndexStore creates a Postgres-backed IndexStore using the provided config.
func NewIndexStore(ctx context.Context, cfg IndexStoreConfig) (*IndexStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	schema, err := schemaName(cfg.Schema)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &IndexStore{pool: p, schema: schema}, nil
}

// NewIndexStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewIndexStoreWithPool(p pool, schema string) (*IndexStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	schema, err := schemaName(schema)
	if err != nil {
		return nil, err
	}
	return &IndexStore{pool: p, schema: schema}, nil
}

func schemaName(schema string) (string, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	if !validSchemaName.MatchString(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	return schema, nil
}

// Close releases the underlying pool resources.
func (s *IndexStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *IndexStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", crawler.ErrPersistence, err)
	}
	return nil
}

// EnsureSchema creates the schema, tables and index if they are missing.
func (s *IndexStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.documents (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL
)`, s.schema),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.words (
	id BIGSERIAL PRIMARY KEY,
	word TEXT NOT NULL UNIQUE
)`, s.schema),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s.word_frequencies (
	document_id BIGINT NOT NULL REFERENCES %[1]s.documents(id) ON DELETE CASCADE,
	word_id BIGINT NOT NULL REFERENCES %[1]s.words(id) ON DELETE CASCADE,
	frequency INTEGER NOT NULL,
	PRIMARY KEY (document_id, word_id)
)`, s.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS word_frequencies_word_id_idx ON %s.word_frequencies (word_id)`, s.schema),
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%w: ensure schema: %w", crawler.ErrPersistence, err)
			}
		}
		return nil
	})
}

// WithinTx runs fn in one transaction. The transaction is rolled back when fn
// fails and committed otherwise.
func (s *IndexStore) WithinTx(ctx context.Context, fn func(crawler.IndexTx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&indexTx{tx: tx, schema: s.schema})
	})
}

func (s *IndexStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", crawler.ErrPersistence, err)
	}
	if err := fn(tx); err != nil {
		// Rollback must run even after ctx is canceled.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return persistenceError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", crawler.ErrPersistence, err)
	}
	return nil
}

func persistenceError(err error) error {
	if errors.Is(err, crawler.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
}

// Search returns documents containing any of words, ranked by the summed
// frequency of those words.
func (s *IndexStore) Search(ctx context.Context, words []string, limit int) ([]crawler.SearchResult, error) {
	if len(words) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT d.url, SUM(wf.frequency) AS total_frequency
FROM %[1]s.documents d
JOIN %[1]s.word_frequencies wf ON wf.document_id = d.id
JOIN %[1]s.words w ON w.id = wf.word_id
WHERE w.word = ANY($1)
GROUP BY d.url
ORDER BY total_frequency DESC, d.url
LIMIT $2`, s.schema)

	rows, err := s.pool.Query(ctx, query, words, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", crawler.ErrPersistence, err)
	}
	defer rows.Close()

	var results []crawler.SearchResult
	for rows.Next() {
		var r crawler.SearchResult
		if err := rows.Scan(&r.URL, &r.TotalFrequency); err != nil {
			return nil, fmt.Errorf("%w: scan search row: %w", crawler.ErrPersistence, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search rows: %w", crawler.ErrPersistence, err)
	}
	return results, nil
}

type indexTx struct {
	tx     pgx.Tx
	schema string
}

// SaveDocument inserts the document if its URL is new and returns the ID of
// the row for url either way.
func (t *indexTx) SaveDocument(ctx context.Context, url, content string) (int64, error) {
	query := fmt.Sprintf(`
WITH ins AS (
	INSERT INTO %[1]s.documents (url, content)
	VALUES ($1, $2)
	ON CONFLICT (url) DO NOTHING
	RETURNING id
)
SELECT id FROM ins
UNION ALL
SELECT id FROM %[1]s.documents WHERE url = $1
LIMIT 1`, t.schema)

	// Postgres text columns reject NUL bytes.
	content = strings.ReplaceAll(content, "\x00", "")
	var id int64
	err := t.tx.QueryRow(ctx, query, url, content).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent writer committed url after this statement's snapshot.
		err = t.tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s.documents WHERE url = $1`, t.schema), url).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: save document %q: %w", crawler.ErrPersistence, url, err)
	}
	return id, nil
}

// SaveWordFrequency upserts the word and records its frequency for the
// document. An existing (document, word) pair is left unchanged.
func (t *indexTx) SaveWordFrequency(ctx context.Context, documentID int64, word string, frequency int) error {
	query := fmt.Sprintf(`
WITH w AS (
	INSERT INTO %[1]s.words (word)
	VALUES ($2)
	ON CONFLICT (word) DO UPDATE SET word = EXCLUDED.word
	RETURNING id
)
INSERT INTO %[1]s.word_frequencies (document_id, word_id, frequency)
SELECT $1, w.id, $3 FROM w
ON CONFLICT (document_id, word_id) DO NOTHING`, t.schema)

	if _, err := t.tx.Exec(ctx, query, documentID, word, frequency); err != nil {
		return fmt.Errorf("%w: save frequency %q: %w", crawler.ErrPersistence, word, err)
	}
	return nil
}

var (
	_ crawler.IndexWriter = (*IndexStore)(nil)
	_ crawler.Searcher    = (*IndexStore)(nil)
)
