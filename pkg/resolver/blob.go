package resolver

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Blob is a local-only binary handle held by a pending asset
type Blob interface {
	Open() (io.ReadCloser, error)
	Size() int64
	ContentType() string
	Name() string
}

var errNilBlob = errors.New("nil blob")

// BytesBlob is an in-memory blob
type BytesBlob struct {
	Data     []byte
	Filename string
	MIMEType string
}

func (b *BytesBlob) Open() (io.ReadCloser, error) {
	if b == nil {
		return nil, errNilBlob
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

func (b *BytesBlob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}

func (b *BytesBlob) ContentType() string {
	if b == nil {
		return "application/octet-stream"
	}
	if b.MIMEType != "" {
		return b.MIMEType
	}
	return http.DetectContentType(b.Data)
}

func (b *BytesBlob) Name() string {
	if b == nil {
		return "blob"
	}
	if b.Filename != "" {
		return b.Filename
	}
	return "blob"
}

// FileBlob is a blob backed by a file on disk, opened lazily at upload time
type FileBlob struct {
	Path     string
	MIMEType string
}

func (f *FileBlob) Open() (io.ReadCloser, error) {
	if f == nil {
		return nil, errNilBlob
	}
	return os.Open(f.Path)
}

// Size returns the file size, or -1 when it cannot be determined
func (f *FileBlob) Size() int64 {
	info, err := os.Stat(f.Path)
	if err != nil {
		return -1
	}
	return info.Size()
}

func (f *FileBlob) ContentType() string {
	if f.MIMEType != "" {
		return f.MIMEType
	}
	if t := mime.TypeByExtension(filepath.Ext(f.Path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (f *FileBlob) Name() string { return filepath.Base(f.Path) }
