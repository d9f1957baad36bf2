package db

import (
	"context"
	"database/sql"

	"github.com/RichardoC/neurosci-ai/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteRepository keeps the conversation slot in a key/value table.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLite(dbPath string, logger *zap.Logger) (*SQLiteRepository, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite store requires a path")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db at %s", dbPath)
	}
	// Single writer; one connection avoids SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Load(ctx context.Context) ([]models.Conversation, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, SlotKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Conversation{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read conversation slot")
	}
	return decodeOrEmpty([]byte(value), r.logger, "sqlite"), nil
}

func (r *SQLiteRepository) Save(ctx context.Context, convs []models.Conversation) error {
	data, err := encode(convs)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
        INSERT INTO slots (key, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, query, SlotKey, string(data)); err != nil {
		return errors.Wrap(err, "failed to write conversation slot")
	}

	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
