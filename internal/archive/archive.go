// Package archive manages eventfold's compressed rotation history:
// archive.jsonl.zst, a sequence of zero or more concatenated Zstandard
// frames, one per rotation. Each frame decompresses to a contiguous slice
// of app.jsonl as it existed at that rotation; streaming the whole file
// through one decoder transparently spans every frame in order.
//
// Grounded in abrahamVado-DriftPursuit/go-broker/internal/replay/writer.go,
// which opens a zstd.Encoder directly over an *os.File to stream frames to
// disk.
package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// AppendFrame compresses data as one Zstandard frame and appends it to the
// archive file at path, creating the file on first call. The frame is
// flushed and closed before return so it is independently decodable even
// if the process crashes before any later frame is appended.
func AppendFrame(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("archive: new encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("archive: write frame: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("archive: close frame: %w", err)
	}
	return f.Sync()
}

// Stream is a streaming decompressor spanning every concatenated frame in
// an archive file, oldest first.
type Stream struct {
	f   *os.File
	dec *zstd.Decoder
}

// OpenStream returns a Stream over path, or (nil, nil) if the archive does
// not yet exist (no rotation has happened).
func OpenStream(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("archive: new decoder: %w", err)
	}
	return &Stream{f: f, dec: dec}, nil
}

// Read implements io.Reader over the fully decompressed, concatenated
// frame contents.
func (s *Stream) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}

var _ io.Reader = (*Stream)(nil)

// Close releases the decoder and underlying file handle.
func (s *Stream) Close() error {
	s.dec.Close()
	return s.f.Close()
}
