// Package fileio implements adapt.FileSystem over the local filesystem,
// the Go analogue of unixio.c's ioFileOpen/ioFileRead/ioFileWrite.
package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/djtremolo/thermit/internal/adapt"
)

// FS opens files rooted at a base directory.
type FS struct {
	dir string
}

// New returns an FS rooted at dir.
func New(dir string) *FS {
	return &FS{dir: dir}
}

func (f *FS) path(name string) string {
	if f.dir == "" {
		return name
	}
	return f.dir + "/" + name
}

// OpenRead opens name for reading and reports its size.
func (f *FS) OpenRead(name string) (adapt.FileHandle, uint16, error) {
	file, err := os.Open(f.path(name))
	if err != nil {
		return nil, 0, fmt.Errorf("fileio: open for read %q: %w", name, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("fileio: stat %q: %w", name, err)
	}
	if info.Size() > 0xFFFF {
		_ = file.Close()
		return nil, 0, fmt.Errorf("fileio: %q is %d bytes, exceeds maxFileSize range", name, info.Size())
	}

	return &Handle{file: file}, uint16(info.Size()), nil
}

// OpenWrite creates (or truncates) name for writing. size is advisory;
// the os package has no portable preallocation, so it is ignored and
// the file is not extended up front.
func (f *FS) OpenWrite(name string, size uint16) (adapt.FileHandle, error) {
	file, err := os.Create(f.path(name))
	if err != nil {
		return nil, fmt.Errorf("fileio: open for write %q: %w", name, err)
	}
	return &Handle{file: file}, nil
}

// Handle is a single open *os.File addressed by absolute offset.
type Handle struct {
	file *os.File
}

// ReadAt reads len(buf) bytes starting at offset.
func (h *Handle) ReadAt(offset uint16, buf []byte) (int, error) {
	n, err := h.file.ReadAt(buf, int64(offset))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return n, fmt.Errorf("fileio: read at %d: %w", offset, err)
	}
	return n, nil
}

// WriteAt writes buf starting at offset, overwriting in place so that
// out-of-order chunk delivery is idempotent.
func (h *Handle) WriteAt(offset uint16, buf []byte) error {
	if _, err := h.file.WriteAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("fileio: write at %d: %w", offset, err)
	}
	return nil
}

// Close closes the underlying file.
func (h *Handle) Close() error {
	return h.file.Close()
}

// DirQueue implements adapt.OutboundSource by scanning a directory for
// regular files not yet offered to the session, the local-disk
// alternative to redisqueue.Sender.
type DirQueue struct {
	dir     string
	offered map[string]bool
}

// NewDirQueue returns a DirQueue scanning dir.
func NewDirQueue(dir string) *DirQueue {
	return &DirQueue{dir: dir, offered: make(map[string]bool)}
}

// Next returns the lowest-named regular file in dir not yet offered.
func (q *DirQueue) Next() (string, uint16, bool) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return "", 0, false
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || q.offered[e.Name()] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", 0, false
	}

	name := names[0]
	info, err := os.Stat(q.dir + "/" + name)
	if err != nil || info.Size() > 0xFFFF {
		q.offered[name] = true // don't retry an unusable file forever
		return "", 0, false
	}

	q.offered[name] = true
	return name, uint16(info.Size()), true
}
