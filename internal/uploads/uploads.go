// Package uploads keeps uploaded photos for the lifetime of one request.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	u "reportcard/internal/utils"
)

// ErrTooLarge is returned when an upload exceeds the store's limit.
var ErrTooLarge = errors.New("upload too large")

// Upload is one stored file. Release must be called once the request is
// done; it is safe to call more than once.
type Upload struct {
	Name string // Name is the client-supplied file name
	Size int64

	read    func() ([]byte, error)
	release func() error
	once    sync.Once
}

// Bytes returns the file content.
func (up *Upload) Bytes() ([]byte, error) {
	return up.read()
}

// Release frees the stored copy.
func (up *Upload) Release() {
	up.once.Do(func() {
		if up.release == nil {
			return
		}
		if err := up.release(); err != nil {
			u.Warn("Failed to remove upload", "name", up.Name, "error", err)
		}
	})
}

// Store persists an uploaded file until it is released.
type Store interface {
	Save(fh *multipart.FileHeader) (*Upload, error)
}

// DiskStore writes uploads under Dir with a random name.
type DiskStore struct {
	Dir      string
	MaxBytes int64 // 0 means no limit
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir, MaxBytes: maxBytes}, nil
}

// Save implements Store.
func (s *DiskStore) Save(fh *multipart.FileHeader) (*Upload, error) {
	if err := checkSize(fh, s.MaxBytes); err != nil {
		return nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.Dir, uuid.NewString()+safeExt(fh.Filename))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return &Upload{
		Name: fh.Filename,
		Size: n,
		read: func() ([]byte, error) {
			return os.ReadFile(path)
		},
		release: func() error {
			err := os.Remove(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		},
	}, nil
}

// MemoryStore keeps uploads in memory. Nothing touches the file system.
type MemoryStore struct {
	MaxBytes int64 // 0 means no limit
}

// Save implements Store.
func (s *MemoryStore) Save(fh *multipart.FileHeader) (*Upload, error) {
	if err := checkSize(fh, s.MaxBytes); err != nil {
		return nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &Upload{
		Name: fh.Filename,
		Size: int64(len(data)),
		read: func() ([]byte, error) {
			return data, nil
		},
	}, nil
}

// NewStore picks the store configured in cfg.
func NewStore(cfg u.UploadsConfig, maxBytes int64) (Store, error) {
	if cfg.Mode == "memory" {
		return &MemoryStore{MaxBytes: maxBytes}, nil
	}
	return NewDiskStore(cfg.Dir, maxBytes)
}

func checkSize(fh *multipart.FileHeader, maxBytes int64) error {
	if maxBytes > 0 && fh.Size > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, fh.Size, maxBytes)
	}
	return nil
}

// safeExt keeps a short alphanumeric extension of the client file name.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
