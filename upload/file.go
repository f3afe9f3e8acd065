// Package upload holds the data model shared by upload sessions and the transports
// performing the actual byte transfer.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

// File is a handle to one payload submitted for upload.
// Sessions key progress by the handle's identity, so the same *File
// must be passed through to the transport unchanged.
type File struct {
	Name         string
	Size         int64
	Type         string
	LastModified time.Time

	open func() (io.ReadCloser, error)
}

// NewFile creates a File whose contents are produced by open.
// open is called once per transfer attempt.
func NewFile(name string, size int64, contentType string, open func() (io.ReadCloser, error)) *File {
	return &File{
		Name: name,
		Size: size,
		Type: contentType,
		open: open,
	}
}

// NewFileFromBytes creates an in-memory File.
func NewFileFromBytes(name, contentType string, data []byte) *File {
	return &File{
		Name:         name,
		Size:         int64(len(data)),
		Type:         contentType,
		LastModified: time.Now(),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// NewFileFromPath creates a File backed by the file at path.
func NewFileFromPath(path, name, contentType string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &File{
		Name:         name,
		Size:         info.Size(),
		Type:         contentType,
		LastModified: info.ModTime(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Open returns a fresh reader for the file contents.
// The caller is responsible for closing it.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content source", f.Name)
	}
	return f.open()
}
