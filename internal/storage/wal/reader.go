package wal

// ============================================================================
// Reader
// Responsibility: a cloneable, lock-free read handle over the active log
// and archive. Reader holds only path strings — no persistent file handle,
// no interior mutable state — so it is trivially safe to share across
// goroutines; every method opens a fresh *os.File.
// ============================================================================

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ChuLiYu/eventfold/internal/archive"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

// Reader is a plain value: copying it is cloning it.
type Reader struct {
	ActivePath  string
	ArchivePath string
}

// NewReader constructs a Reader over the given active-log and archive
// paths. The archive need not exist yet.
func NewReader(activePath, archivePath string) Reader {
	return Reader{ActivePath: activePath, ArchivePath: archivePath}
}

// ActiveLogSize returns the current size of the active log in bytes via a
// metadata stat only.
func (r Reader) ActiveLogSize() (uint64, error) {
	info, err := os.Stat(r.ActivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("wal: stat active log: %w", err)
	}
	return uint64(info.Size()), nil
}

// HasNewEvents reports whether the active log has grown past offset. Pure
// metadata, never blocks.
func (r Reader) HasNewEvents(offset uint64) (bool, error) {
	size, err := r.ActiveLogSize()
	if err != nil {
		return false, err
	}
	return size > offset, nil
}

// Item is one decoded record from either iterator below. During the
// archive segment of a full replay, HasOffset is false — only the line
// hash is meaningful there, per spec: the archive carries no offset
// bookkeeping, since offsets are always relative to the (rotated-away)
// active log they describe.
type Item struct {
	Event      event.Event
	LineHash   string
	NextOffset uint64
	HasOffset  bool
}

// ActiveIter streams complete lines from the active log starting at a
// given byte offset.
type ActiveIter struct {
	f      *os.File
	br     *bufio.Reader
	offset uint64
}

// ReadFrom seeks to offset and returns an iterator emitting one item per
// complete line after it. A trailing partial line (no terminating "\n",
// the signature of a crash mid-append) is silently dropped. Empty lines
// are silently skipped.
func (r Reader) ReadFrom(offset uint64) (*ActiveIter, error) {
	f, err := os.Open(r.ActivePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No writer has created the active log yet; treat it as empty.
			return &ActiveIter{f: nil, br: bufio.NewReader(noopReader{}), offset: offset}, nil
		}
		return nil, fmt.Errorf("wal: open active log: %w", err)
	}
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: seek active log: %w", err)
	}
	return &ActiveIter{f: f, br: bufio.NewReader(f), offset: offset}, nil
}

type noopReader struct{}

func (noopReader) Read(p []byte) (int, error) { return 0, io.EOF }

// Next returns the next item. ok is false at end of stream (err is nil) or
// when a structural decode error terminates iteration (err is a
// *DecodeError); the reference behavior is to stop on the first malformed
// line rather than skip past it.
func (it *ActiveIter) Next() (Item, bool, error) {
	for {
		line, err := it.br.ReadBytes('\n')
		switch {
		case err == io.EOF:
			// Whatever is left (possibly empty) is either nothing or a
			// partial trailing line from a crash mid-append; both are
			// silently dropped.
			return Item{}, false, nil
		case err != nil:
			return Item{}, false, fmt.Errorf("wal: read active log: %w", err)
		}

		lineStart := it.offset
		raw := line[:len(line)-1] // strip trailing '\n'
		it.offset += uint64(len(line))

		if len(raw) == 0 {
			continue
		}

		ev, decErr := event.Decode(raw)
		if decErr != nil {
			return Item{}, false, &DecodeError{Offset: lineStart, Cause: decErr}
		}

		return Item{
			Event:      ev,
			LineHash:   lineHash(raw),
			NextOffset: it.offset,
			HasOffset:  true,
		}, true, nil
	}
}

// Close releases the underlying file handle, if any was opened.
func (it *ActiveIter) Close() error {
	if it.f == nil {
		return nil
	}
	return it.f.Close()
}

// FullIter streams the archive (if present) followed by the active log
// from offset 0, presenting both as one continuous sequence.
type FullIter struct {
	archive    *archive.Stream
	archiveBuf *bufio.Reader
	active     *ActiveIter
	inArchive  bool
}

// ReadFull returns an iterator over the archive (decompressed, oldest
// first) followed by the active log from its start. A full replay
// exhausts both segments exactly once.
func (r Reader) ReadFull() (*FullIter, error) {
	it := &FullIter{}

	stream, err := archive.OpenStream(r.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("wal: open archive: %w", err)
	}
	if stream != nil {
		it.archive = stream
		it.archiveBuf = bufio.NewReader(stream)
		it.inArchive = true
	}

	active, err := r.ReadFrom(0)
	if err != nil {
		if stream != nil {
			stream.Close()
		}
		return nil, err
	}
	it.active = active
	return it, nil
}

// Next returns the next item in archive-then-active order. See ActiveIter.Next
// for decode-error behavior, which applies identically to both segments.
func (it *FullIter) Next() (Item, bool, error) {
	if it.inArchive {
		line, err := it.archiveBuf.ReadBytes('\n')
		switch {
		case err == io.EOF:
			it.inArchive = false
			if len(line) > 0 {
				// A non-newline-terminated remainder at the very end of
				// the archive is a corrupted frame, not a normal partial
				// line (every rotation writes a "\n"-terminated log); it
				// is silently dropped here and not reported to callers,
				// consistent with how a crash-truncated active log tail
				// is always silently dropped.
			}
		case err != nil:
			return Item{}, false, fmt.Errorf("wal: read archive: %w", err)
		default:
			raw := line[:len(line)-1]
			if len(raw) == 0 {
				return it.Next()
			}
			ev, decErr := event.Decode(raw)
			if decErr != nil {
				return Item{}, false, &DecodeError{Cause: decErr}
			}
			return Item{Event: ev, LineHash: lineHash(raw), HasOffset: false}, true, nil
		}
	}
	return it.active.Next()
}

// Close releases both the archive stream (if any) and the active log
// handle.
func (it *FullIter) Close() error {
	var firstErr error
	if it.archive != nil {
		if err := it.archive.Close(); err != nil {
			firstErr = err
		}
	}
	if err := it.active.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ReadLineHashBefore returns the hash of the line ending at byte
// offset-1, or ("", false) if offset is 0 or lies outside the file. It
// scans forward from the start of the file — simplest, O(offset), and
// correctness is the only requirement the spec imposes.
func (r Reader) ReadLineHashBefore(offset uint64) (string, bool, error) {
	if offset == 0 {
		return "", false, nil
	}
	size, err := r.ActiveLogSize()
	if err != nil {
		return "", false, err
	}
	if offset > size {
		return "", false, nil
	}

	it, err := r.ReadFrom(0)
	if err != nil {
		return "", false, err
	}
	defer it.Close()

	var last string
	var found bool
	for {
		item, ok, err := it.Next()
		if err != nil {
			return "", false, err
		}
		if !ok {
			break
		}
		if item.NextOffset == offset {
			last = item.LineHash
			found = true
			break
		}
		if item.NextOffset > offset {
			break
		}
	}
	if !found {
		return "", false, nil
	}
	return last, true, nil
}
