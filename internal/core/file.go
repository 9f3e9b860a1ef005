package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSource is an import file that can be opened once per run.
// The reconciler closes what Open returns on every exit path.
type FileSource interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// acceptedContentTypes lists MIME types browsers commonly send for CSV files.
var acceptedContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true,
}

// CheckFileType accepts files with a .csv extension or a CSV content type.
func CheckFileType(name, contentType string) error {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if acceptedContentTypes[ct] {
		return nil
	}
	return &InvalidFileError{Reason: fmt.Sprintf("%q is not a CSV file", name)}
}

// MemoryFile is a FileSource backed by a byte slice.
type MemoryFile struct {
	name        string
	contentType string
	data        []byte
}

// NewMemoryFile wraps data as a CSV file named name.
func NewMemoryFile(name string, data []byte) *MemoryFile {
	return &MemoryFile{name: name, contentType: "text/csv", data: data}
}

func (f *MemoryFile) Name() string        { return f.name }
func (f *MemoryFile) Size() int64         { return int64(len(f.data)) }
func (f *MemoryFile) ContentType() string { return f.contentType }

// Open returns a fresh reader over the data.
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// SpooledFile is an upload copied to a temporary file so it outlives the
// request that carried it. Call Remove once the import run is finished.
type SpooledFile struct {
	path        string
	name        string
	contentType string
	size        int64
}

// SpoolFile copies r into a new temporary file in dir (os.TempDir if empty).
// It fails with *InvalidFileError when r holds more than maxSize bytes.
func SpoolFile(r io.Reader, dir, name, contentType string, maxSize int64) (*SpooledFile, error) {
	tmp, err := os.CreateTemp(dir, "import-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	n, err := io.Copy(tmp, NewLimitedReader(r, maxSize))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		if errors.Is(err, errFileTooLarge) {
			return nil, &InvalidFileError{Reason: "file too large", Err: err}
		}
		return nil, &InvalidFileError{Reason: "unreadable file", Err: err}
	}

	return &SpooledFile{
		path:        tmp.Name(),
		name:        name,
		contentType: contentType,
		size:        n,
	}, nil
}

func (f *SpooledFile) Name() string        { return f.name }
func (f *SpooledFile) Size() int64         { return f.size }
func (f *SpooledFile) ContentType() string { return f.contentType }

// Open opens the spooled copy for reading.
func (f *SpooledFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Remove deletes the spooled copy.
func (f *SpooledFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
