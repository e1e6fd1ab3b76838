package snapshot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count int `json:"count"`
}

func TestNewStore(t *testing.T) {
	store := NewStore[counterState]("test_snapshot.json", 1)
	assert.NotNil(t, store)
	assert.Equal(t, "test_snapshot.json", store.Path())
}

func TestWriteAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	original := Snapshot[counterState]{
		State:    counterState{Count: 42},
		Offset:   128,
		LineHash: "abc123abc123abcd",
	}

	require.NoError(t, store.Write(original))

	loaded, found := store.Load()
	require.True(t, found)
	assert.Equal(t, original.State, loaded.State)
	assert.Equal(t, original.Offset, loaded.Offset)
	assert.Equal(t, original.LineHash, loaded.LineHash)
	assert.Equal(t, 1, loaded.SchemaVer)
}

func TestAtomicWrite(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	require.NoError(t, store.Write(Snapshot[counterState]{State: counterState{Count: 1}, Offset: 50}))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := store.Write(Snapshot[counterState]{State: counterState{Count: 2}, Offset: 100})
		assert.NoError(t, err)
	}()

	var loaded Snapshot[counterState]
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		snap, found := store.Load()
		assert.True(t, found)
		loaded = snap
	}()

	wg.Wait()

	assert.True(t, loaded.Offset == 50 || loaded.Offset == 100,
		"should load either the old (50) or new (100) snapshot, got %d", loaded.Offset)

	tmpPath := snapshotPath + ".tmp"
	_, err := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(err), "temp file should not exist after write")
}

func TestExists(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	assert.False(t, store.Exists())
	require.NoError(t, store.Write(Snapshot[counterState]{State: counterState{Count: 1}}))
	assert.True(t, store.Exists())
}

func TestFirstBoot(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "non_existent_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	_, found := store.Load()
	assert.False(t, found, "a missing snapshot is reported as not-found, not an error")
}

func TestVersionMismatchIsTreatedAsNotFound(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")

	writer := NewStore[counterState](snapshotPath, 2)
	require.NoError(t, writer.Write(Snapshot[counterState]{State: counterState{Count: 1}}))

	reader := NewStore[counterState](snapshotPath, 1)
	_, found := reader.Load()
	assert.False(t, found, "a schema version this store does not recognize must fall back to rebuild")
}

func TestCorruptedSnapshotIsTreatedAsNotFound(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	corrupted := `{"state": {"count": 1}, "offset": `
	require.NoError(t, os.WriteFile(snapshotPath, []byte(corrupted), 0644))

	_, found := store.Load()
	assert.False(t, found)
}

func TestWriteFailure(t *testing.T) {
	tempDir := t.TempDir()

	readOnlyDir := filepath.Join(tempDir, "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0444))
	defer os.Chmod(readOnlyDir, 0755)

	snapshotPath := filepath.Join(readOnlyDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	err := store.Write(Snapshot[counterState]{State: counterState{Count: 1}})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	require.NoError(t, store.Write(Snapshot[counterState]{State: counterState{Count: 1}}))
	assert.True(t, store.Exists())
	require.NoError(t, store.Remove())
	assert.False(t, store.Exists())
	require.NoError(t, store.Remove(), "removing an already-absent snapshot is not an error")
}

func TestRemoveCleansUpOrphanedTempFile(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	require.NoError(t, store.Write(Snapshot[counterState]{State: counterState{Count: 1}}))

	// Simulate a crash between Write's temp-write and its rename: a
	// ".tmp" sibling left behind alongside the real snapshot.
	tmpPath := snapshotPath + ".tmp"
	require.NoError(t, os.WriteFile(tmpPath, []byte(`{"state":{"count":2}}`), 0644))

	require.NoError(t, store.Remove())
	assert.False(t, store.Exists())
	_, err := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(err), "Remove must also delete the orphaned .tmp file")
}

func TestConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	numGoroutines := 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(index int) {
			defer wg.Done()
			err := store.Write(Snapshot[counterState]{State: counterState{Count: index}, Offset: uint64(index)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, found := store.Load()
	assert.True(t, found)
}

func TestConcurrentReads(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "test_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)

	require.NoError(t, store.Write(Snapshot[counterState]{State: counterState{Count: 7}, Offset: 100}))

	numGoroutines := 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			loaded, found := store.Load()
			assert.True(t, found)
			assert.Equal(t, uint64(100), loaded.Offset)
			assert.Equal(t, 7, loaded.State.Count)
		}()
	}
	wg.Wait()
}

func BenchmarkWrite(b *testing.B) {
	tempDir := b.TempDir()
	snapshotPath := filepath.Join(tempDir, "benchmark_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)
	snap := Snapshot[counterState]{State: counterState{Count: 100}, Offset: 100}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Write(snap)
	}
}

func BenchmarkLoad(b *testing.B) {
	tempDir := b.TempDir()
	snapshotPath := filepath.Join(tempDir, "benchmark_snapshot.json")
	store := NewStore[counterState](snapshotPath, 1)
	_ = store.Write(Snapshot[counterState]{State: counterState{Count: 100}, Offset: 100})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load()
	}
}
