package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDriver persists memory records in a sqlite database. The record is
// stored as a JSON payload keyed by conversation id, mirroring the file
// driver's document shape.
type SQLiteDriver struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memory_record (
	conversation_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_ts INTEGER NOT NULL
);
`

// NewSQLiteDriver opens (and migrates) a sqlite-backed memory driver.
func NewSQLiteDriver(dsn string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on concurrent conversation updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate memory schema: %w", err)
	}
	return &SQLiteDriver{db: db}, nil
}

// Load reads the record for a conversation, or returns nil when none exists.
func (d *SQLiteDriver) Load(ctx context.Context, conversationID string) (*Record, error) {
	var payload string
	err := d.db.QueryRowContext(ctx,
		`SELECT payload FROM memory_record WHERE conversation_id = ?`,
		conversationID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("corrupt memory record: %w", err)
	}
	return &rec, nil
}

// Save upserts the record.
func (d *SQLiteDriver) Save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO memory_record (conversation_id, payload, updated_ts)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			payload = excluded.payload,
			updated_ts = excluded.updated_ts
	`, rec.ConversationID, string(payload), time.Now().Unix())
	return err
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

var _ Driver = (*SQLiteDriver)(nil)
