package uploads

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "reportcard/internal/utils"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("photo", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["photo"][0]
}

func TestDiskStoreSaveAndRelease(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(filepath.Join(dir, "uploads"), 0)
	require.NoError(t, err)

	up, err := s.Save(fileHeader(t, "me.PNG", []byte("pixels")))
	require.NoError(t, err)
	assert.Equal(t, "me.PNG", up.Name)
	assert.Equal(t, int64(6), up.Size)

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".png", filepath.Ext(entries[0].Name()))
	assert.NotContains(t, entries[0].Name(), "me")

	data, err := up.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)

	up.Release()
	up.Release()
	entries, err = os.ReadDir(s.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStoreUniqueNames(t *testing.T) {
	s, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	a, err := s.Save(fileHeader(t, "a.jpg", []byte("1")))
	require.NoError(t, err)
	b, err := s.Save(fileHeader(t, "a.jpg", []byte("2")))
	require.NoError(t, err)
	defer a.Release()
	defer b.Release()

	da, _ := a.Bytes()
	db, _ := b.Bytes()
	assert.Equal(t, []byte("1"), da)
	assert.Equal(t, []byte("2"), db)
}

func TestStoresRejectLargeUploads(t *testing.T) {
	fh := fileHeader(t, "big.png", bytes.Repeat([]byte("x"), 100))

	disk, err := NewDiskStore(t.TempDir(), 10)
	require.NoError(t, err)
	_, err = disk.Save(fh)
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = (&MemoryStore{MaxBytes: 10}).Save(fh)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestMemoryStore(t *testing.T) {
	up, err := (&MemoryStore{}).Save(fileHeader(t, "p.webp", []byte("abc")))
	require.NoError(t, err)
	defer up.Release()

	data, err := up.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, int64(3), up.Size)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(u.UploadsConfig{Mode: "memory"}, 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(u.UploadsConfig{Mode: "disk", Dir: t.TempDir()}, 0)
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, s)
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".jpg", safeExt("photo.JPG"))
	assert.Equal(t, "", safeExt("noext"))
	assert.Equal(t, "", safeExt("x.p/ng"))
	assert.Equal(t, "", safeExt("x.toolongext"))
}
