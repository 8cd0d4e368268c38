// Package snapshotstore persists ConfigState snapshots: always atomically
// to a local file, and optionally best-effort to a remote Mirror so a fresh
// instance on another host can bootstrap from the last known-good state.
package snapshotstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sozu-io/sozu/internal/logger"
)

// magic identifies a sozu snapshot file; version allows the framing to
// change without touching the ConfigState JSON it wraps.
var magic = [4]byte{'S', 'Z', '0', '1'}

const version byte = 1

// Mirror is a best-effort remote copy of the snapshot. A Mirror failure
// never fails Save; it is logged and retried on the next save.
type Mirror interface {
	Upload(ctx context.Context, data []byte) error
	Download(ctx context.Context) ([]byte, error)
}

// Store persists snapshots to a local path, syncing to Mirror on a
// best-effort basis.
type Store struct {
	path   string
	mirror Mirror
}

// New returns a Store writing to path. A nil mirror is replaced with
// NullMirror.
func New(path string, mirror Mirror) *Store {
	if mirror == nil {
		mirror = NullMirror{}
	}
	return &Store{path: path, mirror: mirror}
}

// Save writes data to the local path atomically (temp file + rename so a
// crash mid-write never corrupts the last good snapshot) and then attempts
// a mirror upload. A mirror failure is logged, not returned: the local
// write is the durability guarantee workers depend on.
func (s *Store) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshotstore: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshotstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	framed := frame(data)
	if _, err := tmp.Write(framed); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotstore: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshotstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("snapshotstore: rename into place: %w", err)
	}

	if err := s.mirror.Upload(ctx, framed); err != nil {
		logger.Warn("snapshot mirror upload failed", "error", err, "path", s.path)
	}

	return nil
}

// Load reads the local snapshot, falling back to the mirror when the local
// file is absent (fresh host, or volume lost between restarts).
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	framed, err := os.ReadFile(s.path)
	if err == nil {
		return unframe(framed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshotstore: read %s: %w", s.path, err)
	}

	logger.Info("no local snapshot, falling back to mirror", "path", s.path)
	framed, mirrErr := s.mirror.Download(ctx)
	if mirrErr != nil {
		return nil, fmt.Errorf("snapshotstore: no local snapshot and mirror download failed: %w", mirrErr)
	}
	return unframe(framed)
}

// frame prepends the magic and version byte identifying a sozu snapshot.
func frame(data []byte) []byte {
	out := make([]byte, 0, len(magic)+1+len(data))
	out = append(out, magic[:]...)
	out = append(out, version)
	out = append(out, data...)
	return out
}

// unframe validates the magic and version byte and returns the JSON payload
// that follows them.
func unframe(framed []byte) ([]byte, error) {
	if len(framed) < len(magic)+1 {
		return nil, fmt.Errorf("snapshotstore: truncated snapshot (%d bytes)", len(framed))
	}
	if !bytes.Equal(framed[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("snapshotstore: bad magic %q, expected %q", framed[:len(magic)], magic[:])
	}
	if got := framed[len(magic)]; got != version {
		return nil, fmt.Errorf("snapshotstore: unsupported snapshot version %d", got)
	}
	return framed[len(magic)+1:], nil
}

// NullMirror is the default Mirror: every operation is a no-op returning
// ErrNoMirror on Download, so Load's fallback path correctly reports "no
// snapshot anywhere" instead of silently returning empty data.
type NullMirror struct{}

// ErrNoMirror is returned by NullMirror.Download.
var ErrNoMirror = fmt.Errorf("snapshotstore: no mirror configured")

func (NullMirror) Upload(ctx context.Context, data []byte) error { return nil }

func (NullMirror) Download(ctx context.Context) ([]byte, error) { return nil, ErrNoMirror }
