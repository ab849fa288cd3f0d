package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage keeps each index in its own table with a pgvector column and the
// metadata as jsonb, filtered by containment. The table comment records the
// metric so searches order by the operator the HNSW index was built for.
type Storage struct {
	db *sql.DB

	mu      sync.Mutex
	metrics map[string]string
}

// Config holds database connection configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens the pool and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewStorage(db), nil
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db, metrics: make(map[string]string)}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (bool, error) {
	if spec.Dimension <= 0 {
		return false, errors.New("invalid dimension")
	}
	table := tableName(spec.Name)

	var existing sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, table).Scan(&existing); err != nil {
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	}
	if existing.Valid {
		return false, nil
	}
	metric := metricName(spec.Metric)

	quoted := pq.QuoteIdentifier(table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL
		)`, quoted, spec.Dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
			pq.QuoteIdentifier(table+"_embedding_idx"), quoted, opsClass(metric)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (metadata)`,
			pq.QuoteIdentifier(table+"_metadata_idx"), quoted),
		fmt.Sprintf(`COMMENT ON TABLE %s IS %s`, quoted, pq.QuoteLiteral(metric)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	s.mu.Lock()
	s.metrics[table] = metric
	s.mu.Unlock()
	return true, nil
}

func (s *Storage) Upsert(ctx context.Context, index string, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	if len(docs) == 0 {
		return nil
	}
	table := tableName(index)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3::jsonb, $4::vector)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, pq.QuoteIdentifier(table))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return translate(index, err)
	}
	defer stmt.Close()

	for i, d := range docs {
		md, err := json.Marshal(d.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, string(md), pgvector.NewVector(toFloat32(vectors[i]))); err != nil {
			_ = tx.Rollback()
			return translate(index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, index string, vector []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	table := tableName(index)
	metric, err := s.metric(ctx, table)
	if err != nil {
		return nil, translate(index, err)
	}
	rows, err := s.db.QueryContext(ctx, searchQuery(table, metric), pgvector.NewVector(toFloat32(vector)), filterJSON(filter), topK)
	if err != nil {
		return nil, translate(index, err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var (
			r  domain.SearchResult
			md []byte
		)
		if err := rows.Scan(&r.Document.ID, &r.Document.Content, &md, &r.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(md, &r.Document.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.Document.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// tableName maps an index name such as "world-news-rag" to "rag_world_news_rag".
func tableName(index string) string {
	return "rag_" + nonIdent.ReplaceAllString(strings.ToLower(index), "_")
}

// metric returns the metric recorded on table, falling back to cosine for
// tables created without a comment.
func (s *Storage) metric(ctx context.Context, table string) (string, error) {
	s.mu.Lock()
	m, ok := s.metrics[table]
	s.mu.Unlock()
	if ok {
		return m, nil
	}
	var comment sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT obj_description($1::regclass, 'pg_class')`, table).Scan(&comment)
	if err != nil {
		return "", err
	}
	m = metricName(comment.String)
	s.mu.Lock()
	s.metrics[table] = m
	s.mu.Unlock()
	return m, nil
}

// metricName normalises a configured metric to cosine, dotproduct or euclidean.
func metricName(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "dot", "dotproduct", "dot_product", "ip":
		return "dotproduct"
	case "euclid", "euclidean", "l2":
		return "euclidean"
	default:
		return "cosine"
	}
}

func opsClass(metric string) string {
	switch metricName(metric) {
	case "dotproduct":
		return "vector_ip_ops"
	case "euclidean":
		return "vector_l2_ops"
	default:
		return "vector_cosine_ops"
	}
}

// distance returns the operator matching opsClass(metric) and a score
// expression over it where higher is more similar.
func distance(metric string) (op, score string) {
	switch metricName(metric) {
	case "dotproduct":
		// <#> is the negative inner product.
		return "<#>", "-1 * (embedding <#> $1::vector)"
	case "euclidean":
		return "<->", "1 / (1 + (embedding <-> $1::vector))"
	default:
		return "<=>", "1 - (embedding <=> $1::vector)"
	}
}

func searchQuery(table, metric string) string {
	op, score := distance(metric)
	return fmt.Sprintf(`
		SELECT id, content, metadata, %s AS score
		FROM %s
		WHERE metadata @> $2::jsonb
		ORDER BY embedding %s $1::vector
		LIMIT $3
	`, score, pq.QuoteIdentifier(table), op)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func filterJSON(f domain.Filter) string {
	terms := f.Terms()
	m := make(map[string]string, len(terms))
	for _, t := range terms {
		m[t.Key] = t.Value
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func translate(index string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
	}
	return err
}
