package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGStore is a Store backed by PostgreSQL with the pgvector extension.
// Enrollment order and id monotonicity come from the BIGSERIAL primary key;
// the append-only contract is the same as FileStore's.
type PGStore struct {
	db  *sql.DB
	mu  sync.Mutex
	dim int
}

// OpenPGStore connects to the database, runs migrations and returns the
// store. dim fixes the embedding dimension; it must be known up front
// because the vector column is typed with it.
func OpenPGStore(ctx context.Context, databaseURL string, dim int) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	if dim <= 0 {
		return nil, errors.New("embedding dimension is required for the postgres store")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PGStore{db: db, dim: dim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS gallery_records (
			id BIGSERIAL PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			identity_label TEXT NOT NULL,
			enrolled_at TIMESTAMPTZ NOT NULL,
			source_ref TEXT NOT NULL DEFAULT ''
		)
	`, s.dim)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create gallery_records table: %w", err)
	}
	return nil
}

// Append durably inserts one record and returns its assigned id.
func (s *PGStore) Append(ctx context.Context, rec *Record) (int64, error) {
	if len(rec.Embedding) != s.dim {
		return 0, fmt.Errorf("dimension mismatch: expected %d, got %d", s.dim, len(rec.Embedding))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO gallery_records (embedding, identity_label, enrolled_at, source_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, pgvector.NewVector(rec.Embedding), rec.IdentityLabel, rec.EnrolledAt, rec.SourceRef).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return id, nil
}

// LoadAll replays every record in enrollment order.
func (s *PGStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding, identity_label, enrolled_at, source_ref
		FROM gallery_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &vec, &rec.IdentityLabel, &rec.EnrolledAt, &rec.SourceRef); err != nil {
			return nil, fmt.Errorf("failed to scan gallery record: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Dim returns the fixed embedding dimension.
func (s *PGStore) Dim() int {
	return s.dim
}

// Close closes the database connection.
func (s *PGStore) Close() error {
	return s.db.Close()
}
