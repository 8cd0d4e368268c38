package snapshotstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeMirror struct {
	uploaded [][]byte
	download []byte
	downErr  error
}

func (f *fakeMirror) Upload(ctx context.Context, data []byte) error {
	f.uploaded = append(f.uploaded, data)
	return nil
}

func (f *fakeMirror) Download(ctx context.Context) ([]byte, error) {
	if f.downErr != nil {
		return nil, f.downErr
	}
	return f.download, nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := New(path, nil)

	want := []byte(`{"clusters":{}}`)
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSaveMirrorsOnEverySuccessfulWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	mirror := &fakeMirror{}
	store := New(path, mirror)

	data := []byte(`{"clusters":{}}`)
	if err := store.Save(context.Background(), data); err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(mirror.uploaded) != 1 {
		t.Fatalf("want 1 mirror upload, got %d", len(mirror.uploaded))
	}
}

func TestLoadFallsBackToMirrorWhenLocalMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-snapshot.json")
	want := []byte(`{"clusters":{"web":{}}}`)
	mirror := &fakeMirror{download: frame(want)}
	store := New(path, mirror)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSaveFramesWithMagicAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := New(path, nil)

	if err := store.Save(context.Background(), []byte(`{"clusters":{}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw[:4]) != "SZ01" {
		t.Errorf("got magic %q, want SZ01", raw[:4])
	}
	if raw[4] != version {
		t.Errorf("got version %d, want %d", raw[4], version)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("not-a-snapshot"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := New(path, nil)

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("want error for bad magic, got nil")
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	bad := append([]byte("SZ01"), 99)
	bad = append(bad, []byte(`{}`)...)
	if err := os.WriteFile(path, bad, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := New(path, nil)

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("want error for unsupported version, got nil")
	}
}

func TestLoadReturnsErrorWhenNeitherSourceHasData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-snapshot.json")
	store := New(path, nil)

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoMirror) {
		t.Errorf("want wrapped ErrNoMirror, got %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file written, stat err: %v", err)
	}
}
