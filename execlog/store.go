// Package execlog persists tool executions and approval decisions as
// append-only JSON lines, one file per UTC day.
package execlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Lookup for an unknown execution id.
var ErrNotFound = errors.New("execution record not found")

// EntryType distinguishes the lines of a log file.
type EntryType string

const (
	EntryExecution EntryType = "execution"
	EntryApproval  EntryType = "approval"
)

// Entry is one line of a log file.
type Entry struct {
	Type      EntryType                  `json:"type"`
	Execution *agentloop.ExecutionRecord `json:"execution,omitempty"`
	Approval  *agentloop.ApprovalRecord  `json:"approval,omitempty"`
}

const dayLayout = "2006-01-02"

// Store writes entries under dir. Files are opened only for the duration
// of a write so that they can be tailed or copied freely.
type Store struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used to pick the day file.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates dir if needed and checks that today's file is writable.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating execution log dir %q: %w", dir, err)
	}
	path := s.pathFor(s.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening execution log %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing execution log %q: %w", path, err)
	}
	return s, nil
}

// Dir returns the log directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(t time.Time) string {
	return filepath.Join(s.dir, t.UTC().Format(dayLayout)+".jsonl")
}

// Record appends an execution record, assigning a ULID execution id when
// rec has none.
func (s *Store) Record(ctx context.Context, rec *agentloop.ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ExecutionID == "" {
		rec.ExecutionID = ulid.Make().String()
	}
	return s.append(Entry{Type: EntryExecution, Execution: rec})
}

// RecordApproval appends an approval decision.
func (s *Store) RecordApproval(ctx context.Context, rec agentloop.ApprovalRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.append(Entry{Type: EntryApproval, Approval: &rec})
}

func (s *Store) append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling %s entry: %w", e.Type, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(s.now())
	if err := writeLine(path, line); err != nil {
		s.logger.Error().Err(err).Str("path", path).Str("type", string(e.Type)).Msg("execution log append failed")
		return err
	}
	return nil
}

func writeLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening execution log %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing execution log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing execution log: %w", err)
	}
	return nil
}

var _ agentloop.Recorder = (*Store)(nil)
