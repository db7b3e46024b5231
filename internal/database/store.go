package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the journal operations. Methods accept context.Context for
// cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// HasPublication reports whether a post with sourceKey was already published.
	HasPublication(ctx context.Context, sourceKey string) (bool, error)

	// SavePublication records a published post. Saving an existing source key
	// is a no-op.
	SavePublication(ctx context.Context, p *Publication) error

	// GetPublication returns the journal entry for sourceKey, or nil if none.
	GetPublication(ctx context.Context, sourceKey string) (*Publication, error)

	// PrunePublications deletes entries published before cutoff and returns
	// how many were removed.
	PrunePublications(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) HasPublication(ctx context.Context, sourceKey string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM publications WHERE source_key = ?`, sourceKey)
	if err != nil {
		return false, fmt.Errorf("failed to look up publication %s: %w", sourceKey, err)
	}
	return count > 0, nil
}

func (s *sqlxStore) SavePublication(ctx context.Context, p *Publication) error {
	if p == nil {
		return errors.New("cannot save nil publication")
	}
	if p.SourceKey == "" {
		return errors.New("publication must have a source key")
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}
	p.PublishedAt = p.PublishedAt.UTC().Truncate(time.Second)

	query := `
        INSERT INTO publications (source_key, permalink, group_id, content_hash, image_count, published_at)
        VALUES (:source_key, :permalink, :group_id, :content_hash, :image_count, :published_at)
        ON CONFLICT(source_key) DO NOTHING;
    `
	result, err := s.db.NamedExecContext(ctx, query, p)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving publication", "source_key", p.SourceKey, "error", err)
		return fmt.Errorf("failed to save publication %s: %w", p.SourceKey, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.DebugContext(ctx, "Publication already journaled", "source_key", p.SourceKey)
		return nil
	}
	if id, err := result.LastInsertId(); err == nil {
		p.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Publication saved", "source_key", p.SourceKey, "id", p.ID)
	return nil
}

func (s *sqlxStore) GetPublication(ctx context.Context, sourceKey string) (*Publication, error) {
	var p Publication
	err := s.db.GetContext(ctx, &p, `
        SELECT id, source_key, permalink, group_id, content_hash, image_count, published_at
        FROM publications WHERE source_key = ?`, sourceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publication %s: %w", sourceKey, err)
	}
	return &p, nil
}

func (s *sqlxStore) PrunePublications(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE published_at < ?`, cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to prune publications: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned publications: %w", err)
	}
	s.logger.InfoContext(ctx, "Pruned publications", "removed", removed, "cutoff", cutoff)
	return removed, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running SQL maintenance (VACUUM, ANALYZE)")
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return fmt.Errorf("failed to run ANALYZE: %w", err)
	}
	return nil
}
