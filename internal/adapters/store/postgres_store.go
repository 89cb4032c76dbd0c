// Package store persists classification records for the callers that need an audit trail.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// PostgresStore is a PostgreSQL implementation of the ResultStore interface
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to url and ensures the classifications table exists
func NewPostgresStore(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Connected classification store", zap.String("backend", "postgres"))
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS email_classifications (
			id             BIGSERIAL PRIMARY KEY,
			processing_id  TEXT NOT NULL UNIQUE,
			user_id        TEXT NOT NULL DEFAULT '',
			message_id     TEXT NOT NULL DEFAULT '',
			subject        TEXT NOT NULL,
			sender         TEXT NOT NULL,
			content        TEXT NOT NULL DEFAULT '',
			classification TEXT NOT NULL,
			threat_level   TEXT NOT NULL,
			threat_type    TEXT NOT NULL DEFAULT '',
			confidence     DOUBLE PRECISION NOT NULL,
			keywords       TEXT[] NOT NULL DEFAULT '{}',
			reasoning      TEXT NOT NULL DEFAULT '',
			provenance     TEXT NOT NULL,
			model_used     TEXT NOT NULL DEFAULT '',
			processed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_email_classifications_user ON email_classifications(user_id, processed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create classifications table: %w", err)
	}
	return nil
}

// Save persists one classification record
func (s *PostgresStore) Save(ctx context.Context, rec *core.ClassificationRecord) error {
	keywords := rec.Verdict.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_classifications (
			processing_id, user_id, message_id, subject, sender, content,
			classification, threat_level, threat_type, confidence, keywords,
			reasoning, provenance, model_used, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (processing_id) DO NOTHING
	`,
		rec.ProcessingID, rec.UserID, rec.MessageID, rec.Subject, rec.Sender, rec.Content,
		string(rec.Verdict.Classification), string(rec.Verdict.ThreatLevel), rec.Verdict.ThreatType,
		rec.Verdict.Confidence, keywords, rec.Verdict.Reasoning, string(rec.Provenance),
		rec.ModelUsed, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert classification: %v", core.ErrPersistence, err)
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
