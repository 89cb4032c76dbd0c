package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

// SQLiteStore is a SQLite implementation of the ResultStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens dbPath and ensures the classifications table exists
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS email_classifications (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			processing_id  TEXT NOT NULL UNIQUE,
			user_id        TEXT NOT NULL DEFAULT '',
			message_id     TEXT NOT NULL DEFAULT '',
			subject        TEXT NOT NULL,
			sender         TEXT NOT NULL,
			content        TEXT NOT NULL DEFAULT '',
			classification TEXT NOT NULL,
			threat_level   TEXT NOT NULL,
			threat_type    TEXT NOT NULL DEFAULT '',
			confidence     REAL NOT NULL,
			keywords       TEXT NOT NULL DEFAULT '[]',
			reasoning      TEXT NOT NULL DEFAULT '',
			provenance     TEXT NOT NULL,
			model_used     TEXT NOT NULL DEFAULT '',
			processed_at   TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create classifications table: %w", err)
	}

	logger.Info("Opened classification store", zap.String("backend", "sqlite"), zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Save persists one classification record
func (s *SQLiteStore) Save(ctx context.Context, rec *core.ClassificationRecord) error {
	keywords, err := json.Marshal(rec.Verdict.Keywords)
	if err != nil {
		return fmt.Errorf("%w: encode keywords: %v", core.ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO email_classifications (
			processing_id, user_id, message_id, subject, sender, content,
			classification, threat_level, threat_type, confidence, keywords,
			reasoning, provenance, model_used, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ProcessingID, rec.UserID, rec.MessageID, rec.Subject, rec.Sender, rec.Content,
		string(rec.Verdict.Classification), string(rec.Verdict.ThreatLevel), rec.Verdict.ThreatType,
		rec.Verdict.Confidence, string(keywords), rec.Verdict.Reasoning, string(rec.Provenance),
		rec.ModelUsed, rec.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert classification: %v", core.ErrPersistence, err)
	}
	return nil
}

// Count returns the number of stored classifications of a user
func (s *SQLiteStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_classifications WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count classifications: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
