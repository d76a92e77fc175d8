// Package historystore persists per-guild listening history as JSON
// files on local disk. Best-effort storage: a corrupted or missing file
// is treated as empty history.
package historystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/domain/history"
)

// DefaultMaxEntries is the per-guild retention cap.
const DefaultMaxEntries = 20

// Store reads and writes per-guild history files named
// <dir>/<guildID>_history.json, newest entry first.
type Store struct {
	mu         sync.Mutex
	dir        string
	maxEntries int
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create history directory %s", dir)
	}
	return &Store{dir: dir, maxEntries: maxEntries}, nil
}

func (s *Store) path(guildID string) string {
	return filepath.Join(s.dir, guildID+"_history.json")
}

// Append records an entry at the head of the guild's history, trimming
// to the retention cap.
func (s *Store) Append(guildID string, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readLocked(guildID)
	entries = append([]history.Entry{e}, entries...)
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}
	return s.writeLocked(guildID, entries)
}

// Record appends an entry to the guild named inside it. Satisfies the
// session recorder.
func (s *Store) Record(e history.Entry) error {
	return s.Append(e.GuildID, e)
}

// Recent returns up to n entries for the guild, newest first. n <= 0
// returns everything retained.
func (s *Store) Recent(guildID string, n int) []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readLocked(guildID)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// All returns retained entries across every guild, newest first.
func (s *Store) All() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*_history.json"))
	if err != nil {
		return nil
	}
	var out []history.Entry
	for _, path := range matches {
		guildID := trimHistorySuffix(filepath.Base(path))
		out = append(out, s.readLocked(guildID)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PlayedAt.After(out[j].PlayedAt)
	})
	return out
}

// Clear drops the guild's history.
func (s *Store) Clear(guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(guildID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to clear history for guild %s", guildID)
	}
	return nil
}

func (s *Store) readLocked(guildID string) []history.Entry {
	data, err := os.ReadFile(s.path(guildID))
	if err != nil {
		return nil
	}
	var entries []history.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		zlog.Warn().Msgf("Resetting corrupted history file: guild=%s error=%v", guildID, err)
		return nil
	}
	return entries
}

func (s *Store) writeLocked(guildID string, entries []history.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal history")
	}
	tmp := s.path(guildID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write history for guild %s", guildID)
	}
	if err := os.Rename(tmp, s.path(guildID)); err != nil {
		return errors.Wrapf(err, "failed to replace history for guild %s", guildID)
	}
	return nil
}

func trimHistorySuffix(base string) string {
	const suffix = "_history.json"
	return base[:len(base)-len(suffix)]
}
