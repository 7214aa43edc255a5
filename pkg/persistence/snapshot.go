// Package persistence hands discovery results to external storage as
// snapshot files.
package persistence

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scottpeterman/netdisco/pkg/discovery"
)

// SnapshotVersion is the format written by WriteSnapshot.
const SnapshotVersion = 1

// Snapshot is the on-disk envelope around a run result.
type Snapshot struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Result  *discovery.Result `json:"result"`
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// WriteSnapshot writes res to path as indented JSON, gzip-compressed
// when path ends in .gz. The previous file, if any, is replaced
// atomically.
func WriteSnapshot(path string, res *discovery.Result) error {
	if res == nil {
		return fmt.Errorf("no result to write")
	}

	// Create temporary file for atomic write
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath) // no-op once renamed

	var writer io.Writer = file
	var gzWriter *gzip.Writer
	if compressed(path) {
		gzWriter = gzip.NewWriter(file)
		writer = gzWriter
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	snap := Snapshot{Version: SnapshotVersion, SavedAt: time.Now().UTC(), Result: res}
	if err := encoder.Encode(&snap); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if gzWriter != nil {
		if err := gzWriter.Close(); err != nil {
			file.Close()
			return fmt.Errorf("failed to compress snapshot: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to move temporary file: %w", err)
	}
	return nil
}

// ReadSnapshot loads a file written by WriteSnapshot. Compression is
// detected from the content, not the name.
func ReadSnapshot(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	var reader io.Reader = buffered

	// gzip magic number
	if header, err := buffered.Peek(2); err == nil && header[0] == 0x1f && header[1] == 0x8b {
		gzReader, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	var snap Snapshot
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion)
	}
	if snap.Result == nil {
		return nil, fmt.Errorf("snapshot %s holds no result", path)
	}
	return &snap, nil
}
