package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileDriver persists one JSON document per conversation under a directory.
// Writes go through a temp file and rename for best-effort atomicity.
type FileDriver struct {
	dir string
}

// NewFileDriver creates a file driver rooted at dir, creating it if needed.
func NewFileDriver(dir string) (*FileDriver, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	return &FileDriver{dir: dir}, nil
}

func (d *FileDriver) path(conversationID string) string {
	return filepath.Join(d.dir, sanitizeID(conversationID)+".json")
}

// Load reads the record from disk, or returns nil when none exists.
func (d *FileDriver) Load(ctx context.Context, conversationID string) (*Record, error) {
	data, err := os.ReadFile(d.path(conversationID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt memory record: %w", err)
	}
	return &rec, nil
}

// Save writes the record to disk.
func (d *FileDriver) Save(ctx context.Context, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	path := d.path(rec.ConversationID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *FileDriver) Close() error {
	return nil
}

// sanitizeID makes a conversation identifier safe as a filename.
// Telegram chat ids are numeric; WhatsApp ids look like "whatsapp:+1415...".
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

var _ Driver = (*FileDriver)(nil)
