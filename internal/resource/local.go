package resource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/common"
)

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// LocalFile is a resource on the local file system. HasChanged compares the
// current modification time and size with what the previous probe saw; the
// first probe only records a baseline unless ResumeFrom was called.
type LocalFile struct {
	path string
	uri  string

	mu         sync.Mutex
	baseline   *fileState
	resumeFrom time.Time
}

// NewLocalFile creates a LocalFile for path, made absolute
func NewLocalFile(path string) (*LocalFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to resolve path '%s'", path)
	}
	return &LocalFile{path: abs, uri: FileURI(abs)}, nil
}

// URI returns the file:// URI
func (f *LocalFile) URI() string { return f.uri }

// IsLocal is always true
func (f *LocalFile) IsLocal() bool { return true }

// Path returns the absolute file system path
func (f *LocalFile) Path() string { return f.path }

// ResumeFrom makes the first probe report a change when the file was
// modified after lastChecked.
func (f *LocalFile) ResumeFrom(lastChecked time.Time) {
	f.mu.Lock()
	f.resumeFrom = lastChecked
	f.mu.Unlock()
}

// HasChanged stats the file and compares it with the previous probe.
// A file that disappears reports changed once.
func (f *LocalFile) HasChanged(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	current, err := f.stat()
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.baseline == nil {
		f.baseline = &current
		// A missing file says nothing about when it went away.
		return current.exists && !f.resumeFrom.IsZero() && current.modTime.After(f.resumeFrom), nil
	}

	changed := current.exists != f.baseline.exists ||
		!current.modTime.Equal(f.baseline.modTime) ||
		current.size != f.baseline.size
	f.baseline = &current
	return changed, nil
}

func (f *LocalFile) stat() (fileState, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileState{exists: false}, nil
		}
		return fileState{}, err
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}
