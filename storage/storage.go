package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailplane/model"
)

// Store keeps descriptor snapshots on disk as JSON files sharded by date.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a new Store instance with the given base directory.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// EnsureDirs creates the snapshot directory.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(filepath.Join(s.baseDir, "snapshots"), 0o755)
}

// SaveSnapshot writes snap to disk, filling in ID and Timestamp when unset.
func (s *Store) SaveSnapshot(snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	t := snap.Timestamp.UTC()
	dir := filepath.Join(
		s.baseDir,
		"snapshots",
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	filename := fmt.Sprintf("%s_%s.json", t.Format("2006-01-02T15-04-05.000000000Z"), snap.ID)
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ListSnapshots returns the snapshots taken within [from, to], oldest first.
func (s *Store) ListSnapshots(from, to time.Time) ([]model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from = from.UTC()
	to = to.UTC()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var out []model.Snapshot
	for _, snap := range all {
		t := snap.Timestamp.UTC()
		if t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Latest returns the newest snapshot, or nil when there is none.
func (s *Store) Latest() (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil || len(all) == 0 {
		return nil, err
	}
	latest := all[len(all)-1]
	return &latest, nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed. keep <= 0 disables pruning.
func (s *Store) Prune(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		return 0, nil
	}
	paths, err := s.paths()
	if err != nil {
		return 0, err
	}
	if len(paths) <= keep {
		return 0, nil
	}

	removed := 0
	for _, p := range paths[:len(paths)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// paths lists snapshot files oldest first; names sort by timestamp.
func (s *Store) paths() ([]string, error) {
	base := filepath.Join(s.baseDir, "snapshots")
	var paths []string

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}

func (s *Store) readAll() ([]model.Snapshot, error) {
	paths, err := s.paths()
	if err != nil {
		return nil, err
	}

	out := make([]model.Snapshot, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		if snap.Timestamp.IsZero() {
			continue
		}
		out = append(out, snap)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
