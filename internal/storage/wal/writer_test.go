package wal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/eventfold/pkg/event"
)

func TestAppendChaining(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	r1, err := w.Append(event.New("x", nil))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r1.StartOffset)

	r2, err := w.Append(event.New("x", nil))
	require.NoError(t, err)
	assert.Equal(t, r1.EndOffset, r2.StartOffset, "successive appends must chain start==prior end")
}

func TestAppendIfHappyPathAndConflict(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	r1, err := w.AppendIf(event.New("x", nil), 0, "")
	require.NoError(t, err)

	r2, err := w.AppendIf(event.New("x", nil), r1.EndOffset, r1.LineHash)
	require.NoError(t, err)
	assert.Equal(t, r1.EndOffset, r2.StartOffset)

	_, err = w.AppendIf(event.New("x", nil), 0, "")
	var conflict *Conflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, uint64(0), conflict.ExpectedOffset)
	assert.Equal(t, r2.EndOffset, conflict.ActualOffset)
}

func TestAppendIfWrongHashConflict(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	r1, err := w.AppendIf(event.New("x", nil), 0, "")
	require.NoError(t, err)

	_, err = w.AppendIf(event.New("x", nil), r1.EndOffset, "0000000000000000")
	var conflict *Conflict
	require.True(t, errors.As(err, &conflict))
	require.NotNil(t, conflict.ActualHash)
	assert.Equal(t, r1.LineHash, *conflict.ActualHash)
}

func TestRotateOnEmptyLogIsNoop(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	reader := NewReader(w.ActivePath(), w.ArchivePath())
	require.NoError(t, w.Rotate(reader, nil))

	_, err = os.Stat(w.ArchivePath())
	assert.True(t, os.IsNotExist(err), "rotating an empty active log must not create an archive")
}

func TestRotateCompressesAndTruncates(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		_, err := w.Append(event.New("x", nil))
		require.NoError(t, err)
	}

	reader := NewReader(w.ActivePath(), w.ArchivePath())
	require.NoError(t, w.Rotate(reader, nil))

	size, err := reader.ActiveLogSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)

	info, err := os.Stat(w.ArchivePath())
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	it, err := reader.ReadFull()
	require.NoError(t, err)
	defer it.Close()
	count := 0
	for {
		_, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 5, count, "a full replay after rotation must still see every event")
}

func TestSecondWriterCannotLockSameDir(t *testing.T) {
	dir := t.TempDir()
	w1, err := Open(dir, LockFlock, 0)
	require.NoError(t, err)
	defer w1.Close()

	_, err = Open(dir, LockFlock, 0)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestAppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Append(event.New("x", nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenWithExistingActiveLogOverThresholdAutoRotates(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := w.Append(event.New("x", nil))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	w2, err := Open(dir, LockNone, 50)
	require.NoError(t, err)
	defer w2.Close()
	w2.SetRotateHook(func() error {
		reader := NewReader(w2.ActivePath(), w2.ArchivePath())
		return w2.Rotate(reader, nil)
	})
	require.NoError(t, w2.MaybeAutoRotate())

	size, err := NewReader(w2.ActivePath(), w2.ArchivePath()).ActiveLogSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)
}

func TestWaitForEventsSignalsNewData(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	reader := NewReader(w.ActivePath(), w.ArchivePath())

	done := make(chan WaitResult, 1)
	go func() {
		res, err := reader.WaitForEvents(0, time.Second)
		require.NoError(t, err)
		done <- res
	}()

	time.Sleep(100 * time.Millisecond)
	result, err := w.Append(event.New("x", nil))
	require.NoError(t, err)

	select {
	case res := <-done:
		assert.Equal(t, NewData, res.Outcome)
		assert.Equal(t, result.EndOffset, res.Size)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForEvents did not observe the append within 2s")
	}
}

func TestWaitForEventsTimesOutOnQuietLog(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	reader := NewReader(w.ActivePath(), w.ArchivePath())
	start := time.Now()
	res, err := reader.WaitForEvents(0, 200*time.Millisecond)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, Timeout, res.Outcome)
	assert.GreaterOrEqual(t, elapsed, 180*time.Millisecond)
}

func TestRotateRefreshesViewsBeforeTruncating(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		_, err := w.Append(event.New("x", nil))
		require.NoError(t, err)
	}

	fake := &fakeViewSet{}
	reader := NewReader(w.ActivePath(), w.ArchivePath())
	require.NoError(t, w.Rotate(reader, fake))

	assert.True(t, fake.refreshed)
	assert.True(t, fake.reset)
}

type fakeViewSet struct {
	refreshed bool
	reset     bool
}

func (f *fakeViewSet) RefreshAll(r Reader) error { f.refreshed = true; return nil }
func (f *fakeViewSet) ResetOffsets() error        { f.reset = true; return nil }

func TestOpenCreatesViewsDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, LockNone, 0)
	require.NoError(t, err)
	defer w.Close()

	info, err := os.Stat(filepath.Join(dir, "views"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
