package execlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
)

// Days lists the days that have a log file, oldest first.
func (s *Store) Days() ([]time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	var days []time.Time
	for _, m := range matches {
		d, err := time.Parse(dayLayout, strings.TrimSuffix(filepath.Base(m), ".jsonl"))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// Scan calls fn for each raw line of the day's file in write order. A
// missing file yields no lines. fn returning false stops the scan.
func (s *Store) Scan(ctx context.Context, day time.Time, fn func(line []byte) bool) error {
	f, err := os.Open(s.pathFor(day))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 && !fn(line) {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading execution log: %w", err)
		}
	}
}

// ReadDay decodes every entry of the day's file. Malformed lines, such as a
// torn final write, are skipped.
func (s *Store) ReadDay(ctx context.Context, day time.Time) ([]Entry, error) {
	var entries []Entry
	err := s.Scan(ctx, day, func(line []byte) bool {
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
		return true
	})
	return entries, err
}

// Lookup returns the execution record with the given id. The id's ULID
// timestamp selects the day file; other days are searched when that misses.
func (s *Store) Lookup(ctx context.Context, executionID string) (*agentloop.ExecutionRecord, error) {
	days, err := s.Days()
	if err != nil {
		return nil, err
	}
	if id, perr := ulid.ParseStrict(executionID); perr == nil {
		days = append([]time.Time{ulid.Time(id.Time())}, days...)
	}

	seen := make(map[string]bool)
	for _, day := range days {
		key := day.UTC().Format(dayLayout)
		if seen[key] {
			continue
		}
		seen[key] = true

		rec, err := s.lookupDay(ctx, day, executionID)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
}

func (s *Store) lookupDay(ctx context.Context, day time.Time, executionID string) (*agentloop.ExecutionRecord, error) {
	var (
		found  *agentloop.ExecutionRecord
		decErr error
	)
	err := s.Scan(ctx, day, func(line []byte) bool {
		if gjson.GetBytes(line, "execution.execution_id").String() != executionID {
			return true
		}
		var e Entry
		if decErr = json.Unmarshal(line, &e); decErr == nil {
			found = e.Execution
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("decoding execution record %s: %w", executionID, decErr)
	}
	return found, nil
}
