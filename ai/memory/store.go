package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StorageError represents a memory persistence failure. The turn that hit it
// must surface the failure instead of reporting stale success.
type StorageError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("memory %s failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Driver persists memory records. Implementations: file (JSON document per
// conversation) and sqlite.
type Driver interface {
	// Load returns the record for a conversation, or nil when none exists.
	Load(ctx context.Context, conversationID string) (*Record, error)

	// Save persists the record.
	Save(ctx context.Context, rec *Record) error

	// Close releases driver resources.
	Close() error
}

// Store owns all per-conversation memory. Records are keyed by conversation
// identifier so unrelated conversations never serialize against each other,
// and never observe each other's state.
type Store struct {
	driver Driver
	limits Limits

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex // serializes read-modify-write per conversation
	session *SessionContext
}

// NewStore creates a memory store on top of a persistence driver.
func NewStore(driver Driver, limits Limits) *Store {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Store{
		driver:  driver,
		limits:  limits,
		entries: make(map[string]*entry),
	}
}

// Limits returns the configured truncation limits.
func (s *Store) Limits() Limits {
	return s.limits
}

func (s *Store) entryFor(conversationID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[conversationID]
	if !ok {
		e = &entry{session: NewSessionContext(s.limits.MaxShortTermTurns)}
		s.entries[conversationID] = e
	}
	return e
}

// Load returns the current record for a conversation. If no state exists, a
// default-initialized record is created and persisted.
func (s *Store) Load(ctx context.Context, conversationID string) (*Record, error) {
	e := s.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.loadLocked(ctx, conversationID)
}

func (s *Store) loadLocked(ctx context.Context, conversationID string) (*Record, error) {
	rec, err := s.driver.Load(ctx, conversationID)
	if err != nil {
		return nil, &StorageError{Op: "load", ConversationID: conversationID, Err: err}
	}
	if rec != nil {
		return rec, nil
	}

	rec = NewRecord(conversationID)
	rec.UpdatedTs = time.Now().Unix()
	if err := s.driver.Save(ctx, rec); err != nil {
		return nil, &StorageError{Op: "init", ConversationID: conversationID, Err: err}
	}
	slog.Debug("memory: created default record", "conversation_id", conversationID)
	return rec, nil
}

// Update applies the rule table to the record for this conversation and
// persists the result. The record lock is held only for the local
// read-modify-write, never across remote calls.
func (s *Store) Update(ctx context.Context, conversationID, message string) (*Record, error) {
	e := s.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := s.loadLocked(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	applyRules(rec, message, s.limits)
	rec.UpdatedTs = time.Now().Unix()

	if err := s.driver.Save(ctx, rec); err != nil {
		return nil, &StorageError{Op: "save", ConversationID: conversationID, Err: err}
	}

	slog.Debug("memory: record updated",
		"conversation_id", conversationID,
		"history_len", len(rec.History),
		"preferences", len(rec.Preferences),
	)
	return rec, nil
}

// Session returns the transient session context for a conversation.
func (s *Store) Session(conversationID string) *SessionContext {
	return s.entryFor(conversationID).session
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}
