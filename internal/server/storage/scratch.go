package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrScratchTooLarge is returned when a payload exceeds the write limit.
var ErrScratchTooLarge = errors.New("payload exceeds size limit")

// ScratchDir hands out temporary files for staging uploads.
type ScratchDir struct {
	dir string
}

// NewScratchDir creates a scratch area rooted at dir.
func NewScratchDir(dir string) *ScratchDir {
	return &ScratchDir{dir: dir}
}

// EnsureDir creates the scratch directory if it doesn't exist.
func (s *ScratchDir) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create scratch directory %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the scratch directory.
func (s *ScratchDir) Path() string {
	return s.dir
}

// ScratchFile is a staged payload on local disk. Release must be called on
// every path; it is safe to call more than once.
type ScratchFile struct {
	file *os.File
	size int64
	once sync.Once
	err  error
}

// Write copies r into a new scratch file, reading at most limit bytes
// (limit <= 0 means unbounded). On any failure the file is already removed.
func (s *ScratchDir) Write(ctx context.Context, r io.Reader, limit int64) (*ScratchFile, error) {
	f, err := os.OpenFile(filepath.Join(s.dir, uuid.NewString()), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	sf := &ScratchFile{file: f}

	src := io.Reader(contextReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}

	n, err := io.Copy(f, src)
	if err != nil {
		sf.Release()
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if limit > 0 && n > limit {
		sf.Release()
		return nil, ErrScratchTooLarge
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		sf.Release()
		return nil, fmt.Errorf("failed to rewind scratch file: %w", err)
	}

	sf.size = n
	return sf, nil
}

// Read reads from the staged payload.
func (f *ScratchFile) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

// Size is the number of bytes staged.
func (f *ScratchFile) Size() int64 {
	return f.size
}

// Name is the scratch file's path.
func (f *ScratchFile) Name() string {
	return f.file.Name()
}

// Release closes and deletes the scratch file.
func (f *ScratchFile) Release() error {
	f.once.Do(func() {
		f.file.Close()
		if err := os.Remove(f.file.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to remove scratch file", "path", f.file.Name(), "error", err)
			f.err = err
		}
	})
	return f.err
}
