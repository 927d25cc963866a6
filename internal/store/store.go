// Package store persists legislation documents in Postgres.
//
// The relational store is the source of truth for "has this document been
// ingested and what is its current content hash". Chunk vectors live in the
// vector store as a derived projection of these records.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one ingested piece of legislation.
type Document struct {
	// ID is the stable identifier derived from the source URL,
	// e.g. "uksi/2024/76".
	ID string

	Title     string
	SourceURL string

	// Content is the normalized full text.
	Content string

	// Citation fields extracted by the cleaner. Empty when not found.
	DocType         string
	Year            int
	Number          int
	Identifier      string // e.g. "2024 No. 76"
	DateMade        string
	ComingIntoForce string
	LegislationType string

	// ContentHash fingerprints Content for change detection. An empty hash
	// marks a document whose vector projection is absent or stale; the next
	// run reprocesses it from scratch.
	ContentHash string

	IngestedAt time.Time
}

// ContentHash returns the hex SHA-256 fingerprint of normalized text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("relational store connected")
	return &Store{pool: pool, logger: logger}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS legislation_documents (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	source_url        TEXT NOT NULL,
	content           TEXT NOT NULL,
	doc_type          TEXT NOT NULL DEFAULT '',
	year              INTEGER NOT NULL DEFAULT 0,
	number            INTEGER NOT NULL DEFAULT 0,
	identifier        TEXT NOT NULL DEFAULT '',
	date_made         TEXT NOT NULL DEFAULT '',
	coming_into_force TEXT NOT NULL DEFAULT '',
	legislation_type  TEXT NOT NULL DEFAULT '',
	content_hash      TEXT NOT NULL DEFAULT '',
	ingested_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS legislation_documents_source_url_idx
	ON legislation_documents (source_url);
`

// EnsureSchema creates the documents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Get fetches a document by its identifier. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, source_url, content, doc_type, year, number,
		       identifier, date_made, coming_into_force, legislation_type,
		       content_hash, ingested_at
		FROM legislation_documents WHERE id = $1`, id)

	var doc Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.SourceURL, &doc.Content,
		&doc.DocType, &doc.Year, &doc.Number, &doc.Identifier,
		&doc.DateMade, &doc.ComingIntoForce, &doc.LegislationType,
		&doc.ContentHash, &doc.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	return &doc, nil
}

// Upsert inserts or fully updates a document keyed on its identifier.
func (s *Store) Upsert(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return errors.New("document ID is empty")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO legislation_documents
			(id, title, source_url, content, doc_type, year, number,
			 identifier, date_made, coming_into_force, legislation_type,
			 content_hash, ingested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			content = EXCLUDED.content,
			doc_type = EXCLUDED.doc_type,
			year = EXCLUDED.year,
			number = EXCLUDED.number,
			identifier = EXCLUDED.identifier,
			date_made = EXCLUDED.date_made,
			coming_into_force = EXCLUDED.coming_into_force,
			legislation_type = EXCLUDED.legislation_type,
			content_hash = EXCLUDED.content_hash,
			ingested_at = now()`,
		doc.ID, doc.Title, doc.SourceURL, doc.Content, doc.DocType,
		doc.Year, doc.Number, doc.Identifier, doc.DateMade,
		doc.ComingIntoForce, doc.LegislationType, doc.ContentHash)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// SetContentHash overwrites a document's content hash. The pipeline uses it
// as the saga compensating action: rolling the hash back to its previous
// value ("" for brand-new documents) after a failed vector write, so a later
// run retries the document instead of treating it as current.
func (s *Store) SetContentHash(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE legislation_documents SET content_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("setting content hash for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM legislation_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
