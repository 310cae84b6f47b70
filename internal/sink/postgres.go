package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS semantic_chunks (
    doc_id       TEXT NOT NULL,
    chunk_id     INTEGER NOT NULL,
    title        TEXT NOT NULL,
    text         TEXT NOT NULL,
    tab_section  TEXT,
    states       TEXT[] NOT NULL,
    sections     TEXT[] NOT NULL,
    topics       TEXT[] NOT NULL,
    images       JSONB NOT NULL,
    metadata     JSONB NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (doc_id, chunk_id)
);
CREATE INDEX IF NOT EXISTS semantic_chunks_states_idx ON semantic_chunks USING GIN (states);
CREATE INDEX IF NOT EXISTS semantic_chunks_topics_idx ON semantic_chunks USING GIN (topics);
`

// DB is the subset of *pgxpool.Pool the sink uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink stores chunks as rows of semantic_chunks. Image binaries are
// not stored; rows carry the attachment paths.
type PostgresSink struct {
	db   DB
	pool *pgxpool.Pool
}

// NewPostgresSink connects, pings and ensures the schema exists.
func NewPostgresSink(ctx context.Context, connStr string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresSink{db: pool, pool: pool}
	if err := s.Initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresSinkWithDB(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Initialize creates the table and indexes.
func (s *PostgresSink) Initialize(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create semantic_chunks table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write replaces all rows of the document in one transaction.
func (s *PostgresSink) Write(ctx context.Context, a *Artifacts) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM semantic_chunks WHERE doc_id = $1`, a.DocID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, c := range a.Chunks {
		images, err := json.Marshal(c.Images)
		if err != nil {
			return fmt.Errorf("marshal images: %w", err)
		}
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO semantic_chunks
			    (doc_id, chunk_id, title, text, tab_section, states, sections, topics, images, metadata, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.DocID, c.ID, a.Title, c.Text, c.Metadata.TabSection,
			codes(c.Metadata.States), codes(c.Metadata.Sections), codes(c.Metadata.Topics),
			images, md, a.GeneratedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the pool if the sink owns one.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func codes[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}
