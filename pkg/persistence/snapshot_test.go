package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/models"
)

func sampleResult(finished time.Time) *discovery.Result {
	return &discovery.Result{
		RunID:      uuid.NewString(),
		CIDR:       "10.0.0.0/30",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		TotalHosts: 2,
		Devices: []models.DiscoveredDevice{{
			IPAddress:         "10.0.0.1",
			Category:          models.CategorySwitch,
			Status:            models.StatusOnline,
			NeedsVerification: true,
		}},
		Vlans:        []models.DiscoveredVlan{{VlanID: 20, Name: "Users", SegmentName: "Users", UsedBy: []string{"SW1"}}},
		MacAddresses: []models.MacAddressEntry{{MACAddress: "00:1A:AB:05:02:27", VlanID: 20, DeviceType: "Server"}},
		Warnings:     []string{"10.0.0.2: probe failed"},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	for _, name := range []string{"result.json", "result.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			res := sampleResult(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

			require.NoError(t, WriteSnapshot(path, res))
			snap, err := ReadSnapshot(path)
			require.NoError(t, err)

			assert.Equal(t, SnapshotVersion, snap.Version)
			assert.Equal(t, res.RunID, snap.Result.RunID)
			assert.Equal(t, res.Devices, snap.Result.Devices)
			assert.Equal(t, res.Vlans, snap.Result.Vlans)
			assert.True(t, res.FinishedAt.Equal(snap.Result.FinishedAt))

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary file left behind")
		})
	}
}

func TestWriteSnapshot_GzipOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json.gz")
	require.NoError(t, WriteSnapshot(path, sampleResult(time.Now())))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])
}

func TestReadSnapshot_Rejects(t *testing.T) {
	dir := t.TempDir()

	newer := filepath.Join(dir, "newer.json")
	require.NoError(t, os.WriteFile(newer, []byte(`{"version": 99, "result": {}}`), 0o600))
	_, err := ReadSnapshot(newer)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"version": 1}`), 0o600))
	_, err = ReadSnapshot(empty)
	assert.Error(t, err)

	_, err = ReadSnapshot(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	assert.Error(t, WriteSnapshot(filepath.Join(dir, "nil.json"), nil))
}

func TestStore_SaveLoadAndPrune(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshots"), 2, true)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		res := sampleResult(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, res.RunID)
		_, err := store.Save(res)
		require.NoError(t, err)
	}

	names, err := store.List()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Contains(t, names[1], ids[2])

	snap, err := store.Load(ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], snap.Result.RunID)

	_, err = store.Load(ids[0])
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = store.Load("../../etc/passwd")
	assert.Error(t, err)
}
