package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/planner"
)

// ErrNoSnapshot is returned when a week has no saved suggestions.
var ErrNoSnapshot = errors.New("no suggestion snapshot for week")

// Snapshot is a suggestion batch as shown to the user, together with the
// ledger versions it was computed from.
type Snapshot struct {
	WeekStart  time.Time       `json:"week_start"`
	ContextTag string          `json:"context_tag,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Versions   ledger.Versions `json:"versions"`
	Plan       planner.Plan    `json:"plan"`
}

// SnapshotStore keeps the latest suggestion snapshot per week as versioned
// JSON files.
type SnapshotStore struct {
	basePath string
}

// NewSnapshotStore creates a new SnapshotStore and ensures the base directory exists.
func NewSnapshotStore(basePath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &SnapshotStore{basePath: basePath}, nil
}

// sanitizeTimestamp makes the timestamp safe for filenames.
func sanitizeTimestamp(ts time.Time) string {
	return strings.ReplaceAll(ts.UTC().Format("20060102T150405.000000000Z"), ".", "-")
}

func weekKey(weekStart time.Time) string {
	return ledger.FormatDay(weekStart)
}

func (s *SnapshotStore) versionedPath(weekStart, createdAt time.Time) string {
	filename := fmt.Sprintf("week_%s_%s.json", weekKey(weekStart), sanitizeTimestamp(createdAt))
	return filepath.Join(s.basePath, filename)
}

func (s *SnapshotStore) versions(weekStart time.Time) ([]string, error) {
	pattern := filepath.Join(s.basePath, fmt.Sprintf("week_%s_*.json", weekKey(weekStart)))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob snapshot files: %w", err)
	}
	// The timestamp layout sorts lexically in time order.
	sort.Strings(matches)
	return matches, nil
}

// Save replaces the week's snapshot with snap.
func (s *SnapshotStore) Save(snap Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.RemoveStaleVersions(snap.WeekStart); err != nil {
		return err
	}
	if err := os.WriteFile(s.versionedPath(snap.WeekStart, snap.CreatedAt), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// Load returns the newest snapshot for the week.
func (s *SnapshotStore) Load(weekStart time.Time) (*Snapshot, error) {
	matches, err := s.versions(weekStart)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoSnapshot, weekKey(weekStart))
	}
	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Exists checks whether any snapshot is stored for the week.
func (s *SnapshotStore) Exists(weekStart time.Time) bool {
	matches, err := s.versions(weekStart)
	return err == nil && len(matches) > 0
}

// RemoveStaleVersions removes every snapshot file of the week.
func (s *SnapshotStore) RemoveStaleVersions(weekStart time.Time) error {
	matches, err := s.versions(weekStart)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to remove stale file %s: %w", match, err)
		}
	}
	return nil
}
