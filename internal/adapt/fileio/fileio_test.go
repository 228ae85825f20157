package fileio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)

	h, err := fs.OpenWrite("out.bin", 5)
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if err := h.WriteAt(0, []byte("hello")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rh, size, err := fs.OpenRead("out.bin")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer rh.Close()
	if size != 5 {
		t.Fatalf("size = %d, want 5", size)
	}

	buf := make([]byte, 5)
	n, err := rh.ReadAt(0, buf)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("ReadAt = %d, %q, want 5, \"hello\"", n, buf)
	}
}

func TestReadAtTreatsExactEOFAsSuccess(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)

	h, _ := fs.OpenWrite("exact.bin", 4)
	_ = h.WriteAt(0, []byte("abcd"))
	_ = h.Close()

	rh, _, err := fs.OpenRead("exact.bin")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer rh.Close()

	buf := make([]byte, 4)
	n, err := rh.ReadAt(0, buf)
	if err != nil {
		t.Fatalf("ReadAt at exact EOF returned an error: %v", err)
	}
	if n != 4 {
		t.Fatalf("ReadAt n = %d, want 4", n)
	}
}

func TestOpenReadReportsSize(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sized.bin")
	if err := os.WriteFile(name, make([]byte, 10), 0o644); err != nil {
		t.Fatalf("setup WriteFile: %v", err)
	}

	fs := New(dir)
	_, size, err := fs.OpenRead("sized.bin")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	if size != 10 {
		t.Fatalf("size = %d, want 10", size)
	}
}

func TestDirQueueOffersLowestNameOnceEach(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.bin", "a.bin", "c.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("setup WriteFile %s: %v", name, err)
		}
	}

	q := NewDirQueue(dir)

	var got []string
	for i := 0; i < 3; i++ {
		name, size, ok := q.Next()
		if !ok {
			t.Fatalf("Next() round %d: ok=false, want a file", i)
		}
		if size != 1 {
			t.Fatalf("Next() round %d size = %d, want 1", i, size)
		}
		got = append(got, name)
	}

	want := []string{"a.bin", "b.bin", "c.bin"}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("offer order = %v, want %v", got, want)
		}
	}

	if _, _, ok := q.Next(); ok {
		t.Fatalf("Next() should return ok=false once every file has been offered")
	}
}

func TestDirQueueEmptyDir(t *testing.T) {
	dir := t.TempDir()
	q := NewDirQueue(dir)
	if _, _, ok := q.Next(); ok {
		t.Fatalf("Next() on an empty directory should return ok=false")
	}
}
