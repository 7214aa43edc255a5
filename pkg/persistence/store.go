package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scottpeterman/netdisco/pkg/discovery"
)

// Store keeps the most recent run snapshots in a directory.
type Store struct {
	dir      string
	keep     int
	compress bool
	mutex    sync.Mutex
}

// NewStore creates dir if needed. keep <= 0 keeps every snapshot.
func NewStore(dir string, keep int, compress bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{dir: dir, keep: keep, compress: compress}, nil
}

// Save writes res as run_<finished>_<id>.json[.gz] and prunes the oldest
// snapshots beyond the configured limit. It returns the file path.
func (s *Store) Save(res *discovery.Result) (string, error) {
	if res == nil || res.RunID == "" {
		return "", fmt.Errorf("result has no run id")
	}

	name := fmt.Sprintf("run_%s_%s.json", res.FinishedAt.UTC().Format("20060102_150405"), res.RunID)
	if s.compress {
		name += ".gz"
	}
	path := filepath.Join(s.dir, name)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := WriteSnapshot(path, res); err != nil {
		return "", err
	}
	if err := s.cleanup(); err != nil {
		return path, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return path, nil
}

// Load reads the snapshot of run id.
func (s *Store) Load(id string) (*Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q", id)
	}

	s.mutex.Lock()
	names, err := s.list()
	s.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	suffix := "_" + id + ".json"
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasSuffix(strings.TrimSuffix(names[i], ".gz"), suffix) {
			return ReadSnapshot(filepath.Join(s.dir, names[i]))
		}
	}
	return nil, fmt.Errorf("no snapshot for run %s: %w", id, os.ErrNotExist)
}

// List returns snapshot file names, oldest first.
func (s *Store) List() ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.list()
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "run_") {
			continue
		}
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz") {
			names = append(names, name)
		}
	}
	// the timestamp prefix makes name order chronological
	sort.Strings(names)
	return names, nil
}

// cleanup removes the oldest snapshots beyond keep. Caller holds the lock.
func (s *Store) cleanup() error {
	if s.keep <= 0 {
		return nil
	}
	names, err := s.list()
	if err != nil {
		return err
	}
	for i := 0; i < len(names)-s.keep; i++ {
		if err := os.Remove(filepath.Join(s.dir, names[i])); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
