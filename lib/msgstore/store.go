// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/hl7ingest/lib/clock"
	"github.com/bureau-foundation/hl7ingest/lib/metrics"
)

// temporaryPattern names in-progress writes. The leading dot and the
// suffix keep them out of Count and List.
const temporaryPattern = ".incoming-*.tmp"

// WriteError reports a failed filesystem operation while saving a
// record.
type WriteError struct {
	// Op is the step that failed: "count", "evict", "create", "write",
	// "sync", "close", "chmod", "chtimes" or "rename".
	Op string

	// Path is the file or directory involved.
	Path string

	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Config configures a Store.
type Config struct {
	// Directory holds the record files. Created if absent.
	Directory string

	// MaxFiles is the eviction threshold. Must be at least 1.
	MaxFiles int

	// Clock stamps records saved without a receipt time. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger receives save and eviction events. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics, when non-nil, receives store size and eviction counts.
	Metrics *metrics.Metrics
}

// Entry describes one record file.
type Entry struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// Store is a directory of record files bounded by MaxFiles.
type Store struct {
	directory string
	maxFiles  int
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// remove deletes a record during eviction. Replaced in tests to
	// simulate deletion failures.
	remove func(path string) error

	// readDir lists the directory for Count and List.
	readDir func(name string) ([]os.DirEntry, error)

	// mu serializes the count-then-write sequence in Save and the
	// eviction sweep.
	mu sync.Mutex
}

// Open prepares the directory and returns a Store. Temporary files
// left by an interrupted write are removed. If the directory already
// holds more than MaxFiles records, one eviction sweep runs before Open
// returns.
func Open(config Config) (*Store, error) {
	if config.Directory == "" {
		return nil, fmt.Errorf("msgstore: Directory is required")
	}
	if config.MaxFiles < 1 {
		return nil, fmt.Errorf("msgstore: MaxFiles must be at least 1, got %d", config.MaxFiles)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return nil, fmt.Errorf("creating message directory %s: %w", config.Directory, err)
	}

	store := &Store{
		directory: config.Directory,
		maxFiles:  config.MaxFiles,
		clock:     config.Clock,
		logger:    config.Logger,
		metrics:   config.Metrics,
		remove:    os.Remove,
		readDir:   os.ReadDir,
	}

	store.removeTemporaries()

	count, err := store.Count()
	if err != nil {
		return nil, fmt.Errorf("reading message directory %s: %w", config.Directory, err)
	}
	store.logger.Info("message directory initialized",
		"directory", config.Directory,
		"count", count,
		"max_files", config.MaxFiles,
	)
	store.metrics.SetStoredRecords(count)

	if count > config.MaxFiles {
		store.logger.Info("initial cleanup required",
			"count", count,
			"max_files", config.MaxFiles,
		)
		if _, err := store.Evict(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Directory returns the message directory.
func (s *Store) Directory() string { return s.directory }

// MaxFiles returns the eviction threshold.
func (s *Store) MaxFiles() int { return s.maxFiles }

// Count returns the number of record files in the directory at the
// moment of the call.
func (s *Store) Count() (int, error) {
	entries, err := s.readDir(s.directory)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if isRecord(entry.Name(), entry.Type()) {
			count++
		}
	}
	return count, nil
}

// Save persists record and returns its filename. When the directory is
// at capacity, the oldest records are evicted first; on success the
// count does not exceed MaxFiles. If the eviction sweep cannot list the
// directory, nothing is written.
//
// A record with the same filename as an existing one (same second,
// control id and message type) replaces it.
func (s *Store) Save(record Record) (string, error) {
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.Count()
	if err != nil {
		return "", &WriteError{Op: "count", Path: s.directory, Err: err}
	}
	if count >= s.maxFiles {
		s.logger.Info("file limit reached, performing batch cleanup",
			"count", count,
			"max_files", s.maxFiles,
		)
		if _, err := s.evictLocked(count - s.maxFiles + 1); err != nil {
			return "", &WriteError{Op: "evict", Path: s.directory, Err: err}
		}
	}

	name := record.Filename()
	if err := s.write(name, record); err != nil {
		return "", err
	}

	if final, err := s.Count(); err == nil {
		s.metrics.SetStoredRecords(final)
		s.logger.Info("message saved",
			"file", name,
			"count", final,
			"max_files", s.maxFiles,
		)
	}
	return name, nil
}

// Evict deletes the oldest half (rounded down) of the records and
// returns how many were deleted. Individual deletion failures are
// logged and skipped; the returned error reports only a failure to list
// the directory.
func (s *Store) Evict() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(0)
}

// evictLocked deletes max(count/2, minimum) of the oldest records.
// The caller holds s.mu.
func (s *Store) evictLocked(minimum int) (int, error) {
	entries, err := s.List()
	if err != nil {
		s.logger.Error("error during file cleanup", "error", err)
		return 0, fmt.Errorf("listing message directory %s: %w", s.directory, err)
	}

	toRemove := len(entries) / 2
	if minimum > toRemove {
		toRemove = minimum
	}
	if toRemove > len(entries) {
		toRemove = len(entries)
	}
	if toRemove == 0 {
		return 0, nil
	}

	removed, failed := 0, 0
	for _, entry := range entries[:toRemove] {
		if err := s.remove(filepath.Join(s.directory, entry.Name)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			failed++
			s.logger.Warn("could not remove old file", "file", entry.Name, "error", err)
			continue
		}
		removed++
	}

	s.metrics.Evicted(removed, failed)
	s.metrics.SetStoredRecords(len(entries) - removed)
	if removed > 0 {
		s.logger.Info("batch cleanup",
			"removed", removed,
			"remaining", len(entries)-removed,
		)
	}
	return removed, nil
}

// List returns the records sorted oldest first by modification time,
// with the filename breaking ties.
func (s *Store) List() ([]Entry, error) {
	directoryEntries, err := s.readDir(s.directory)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		if !isRecord(directoryEntry.Name(), directoryEntry.Type()) {
			continue
		}
		info, err := directoryEntry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{
			Name:    directoryEntry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.Before(entries[j].ModTime)
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Load reads a record back from the store by filename.
func (s *Store) Load(name string) (Record, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, Extension) {
		return Record{}, fmt.Errorf("invalid record name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.directory, name))
	if err != nil {
		return Record{}, err
	}
	record, err := decodeRecord(data)
	if err != nil {
		return Record{}, fmt.Errorf("loading %s: %w", name, err)
	}
	return record, nil
}

// write stores record under name: temporary file, fsync, rename,
// directory fsync. The file's modification time is set to the receipt
// time before it becomes visible.
func (s *Store) write(name string, record Record) error {
	finalPath := filepath.Join(s.directory, name)

	file, err := os.CreateTemp(s.directory, temporaryPattern)
	if err != nil {
		return &WriteError{Op: "create", Path: finalPath, Err: err}
	}
	temporaryPath := file.Name()

	fail := func(op string, err error) error {
		file.Close()
		os.Remove(temporaryPath)
		return &WriteError{Op: op, Path: finalPath, Err: err}
	}

	if _, err := file.Write(record.encode()); err != nil {
		return fail("write", err)
	}
	if err := file.Chmod(0644); err != nil {
		return fail("chmod", err)
	}
	if err := file.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return &WriteError{Op: "close", Path: finalPath, Err: err}
	}
	if err := os.Chtimes(temporaryPath, record.ReceivedAt, record.ReceivedAt); err != nil {
		os.Remove(temporaryPath)
		return &WriteError{Op: "chtimes", Path: finalPath, Err: err}
	}
	if err := os.Rename(temporaryPath, finalPath); err != nil {
		os.Remove(temporaryPath)
		return &WriteError{Op: "rename", Path: finalPath, Err: err}
	}

	if directory, err := os.Open(s.directory); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// removeTemporaries deletes in-progress files orphaned by a crash.
func (s *Store) removeTemporaries() {
	matches, err := filepath.Glob(filepath.Join(s.directory, temporaryPattern))
	if err != nil {
		return
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			s.logger.Warn("could not remove stale temporary file", "file", match, "error", err)
			continue
		}
		s.logger.Info("removed stale temporary file", "file", filepath.Base(match))
	}
}

// isRecord reports whether a directory entry is a record file.
func isRecord(name string, mode os.FileMode) bool {
	return mode.IsRegular() && strings.HasSuffix(name, Extension) && !strings.HasPrefix(name, ".")
}
