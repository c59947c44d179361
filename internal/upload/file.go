package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/zodakzach/youtube-history-metrics/internal/models"
)

// SelectedFile is an immutable reference to a user-chosen blob.
type SelectedFile struct {
	name        string
	size        int64
	contentType string
	open        func() (io.ReadCloser, error)
}

// NewSelectedFile wraps an opener. open is called once per upload attempt.
func NewSelectedFile(name string, size int64, contentType string, open func() (io.ReadCloser, error)) *SelectedFile {
	if contentType == "" {
		contentType = contentTypeFor(name)
	}
	return &SelectedFile{
		name:        name,
		size:        size,
		contentType: contentType,
		open:        open,
	}
}

// FileFromBytes holds data in memory.
func FileFromBytes(name string, data []byte) *SelectedFile {
	return NewSelectedFile(name, int64(len(data)), "", func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FileFromPath references a file on disk. The file is reopened on every upload.
func FileFromPath(path string) (*SelectedFile, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat selected file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("selected path is a directory: %s", path)
	}

	return NewSelectedFile(filepath.Base(path), stat.Size(), "", func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// Name returns the base name shown to the user.
func (f *SelectedFile) Name() string {
	return f.name
}

// Size returns the file size in bytes.
func (f *SelectedFile) Size() int64 {
	return f.size
}

func (f *SelectedFile) ContentType() string {
	return f.contentType
}

// Open returns a new reader over the file contents.
func (f *SelectedFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("selected file %q has no content", f.name)
	}
	return f.open()
}

// Info returns the file's display metadata.
func (f *SelectedFile) Info() *models.SelectedFileInfo {
	return &models.SelectedFileInfo{
		Name:        f.name,
		Size:        f.size,
		ContentType: f.contentType,
	}
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
