package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportcard/internal/reportcard"
	"reportcard/internal/uploads"
	u "reportcard/internal/utils"
)

type fakeRenderer struct {
	got  reportcard.Request
	out  []byte
	err  error
	hits int
}

func (f *fakeRenderer) Render(_ context.Context, req reportcard.Request) ([]byte, error) {
	f.hits++
	f.got = req
	return f.out, f.err
}

func testCfg() u.Config {
	cfg := u.DefaultConfig()
	cfg.Limits.MaxUploadBytes = 1024
	cfg.Limits.MaxPDFBytes = 1024
	return cfg
}

func validFields() map[string]string {
	return map[string]string{
		"english_name": "Asha Verma",
		"dob":          "1990-05-17",
		"fatherName":   "Ravi Verma",
		"aadharNumber": "1234 5678 9012",
	}
}

func formRequest(t *testing.T, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photo != nil {
		part, err := w.CreateFormFile("photo", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/generate-report-card", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func testApp(svc *ReportCardService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": fiber.Map{"code": code, "message": err.Error()}})
		},
	})
	app.Post("/generate-report-card", svc.HandleGenerate)
	return app
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Message
}

func TestHandleGenerate_Success(t *testing.T) {
	r := &fakeRenderer{out: []byte("%PDF-1.3 fake")}
	svc := NewReportCardService(testCfg(), r, &uploads.MemoryStore{})

	resp, err := testApp(svc).Test(formRequest(t, validFields(), []byte("photo-bytes")), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=report-card.pdf", resp.Header.Get("Content-Disposition"))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, []byte("%PDF-1.3 fake"), body)

	assert.Equal(t, "Asha Verma", r.got.EnglishName)
	assert.Equal(t, "1990-05-17", r.got.DateOfBirth)
	assert.Equal(t, "Ravi Verma", r.got.FatherName)
	assert.Equal(t, "123456789012", r.got.IdentifierNumber)
	assert.Equal(t, []byte("photo-bytes"), r.got.Photo)
}

func TestHandleGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		photo  []byte
		code   int
	}{
		{"missing name", func(f map[string]string) { delete(f, "english_name") }, []byte("p"), fiber.StatusBadRequest},
		{"blank name", func(f map[string]string) { f["english_name"] = "   " }, []byte("p"), fiber.StatusBadRequest},
		{"missing dob", func(f map[string]string) { delete(f, "dob") }, []byte("p"), fiber.StatusBadRequest},
		{"bad dob", func(f map[string]string) { f["dob"] = "17-05-1990" }, []byte("p"), fiber.StatusBadRequest},
		{"missing father", func(f map[string]string) { delete(f, "fatherName") }, []byte("p"), fiber.StatusBadRequest},
		{"short aadhaar", func(f map[string]string) { f["aadharNumber"] = "1234" }, []byte("p"), fiber.StatusBadRequest},
		{"letters in aadhaar", func(f map[string]string) { f["aadharNumber"] = "1234abcd9012" }, []byte("p"), fiber.StatusBadRequest},
		{"missing photo", func(map[string]string) {}, nil, fiber.StatusBadRequest},
		{"empty photo", func(map[string]string) {}, []byte{}, fiber.StatusBadRequest},
		{"photo too large", func(map[string]string) {}, bytes.Repeat([]byte("x"), 2048), fiber.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRenderer{out: []byte("%PDF")}
			cfg := testCfg()
			svc := NewReportCardService(cfg, r, &uploads.MemoryStore{MaxBytes: int64(cfg.Limits.MaxUploadBytes)})

			fields := validFields()
			tc.mutate(fields)
			resp, err := testApp(svc).Test(formRequest(t, fields, tc.photo), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.Zero(t, r.hits)
		})
	}
}

func TestHandleGenerate_RenderFailureIsGeneric(t *testing.T) {
	r := &fakeRenderer{err: &reportcard.RenderError{Stage: "photo", Kind: reportcard.ErrImageDecode, Err: errors.New("bad png header")}}
	svc := NewReportCardService(testCfg(), r, &uploads.MemoryStore{})

	resp, err := testApp(svc).Test(formRequest(t, validFields(), []byte("p")), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to generate PDF.", errorMessage(t, resp))
}

func TestHandleGenerate_PDFTooLarge(t *testing.T) {
	r := &fakeRenderer{out: bytes.Repeat([]byte("x"), 2048)}
	svc := NewReportCardService(testCfg(), r, &uploads.MemoryStore{})

	resp, err := testApp(svc).Test(formRequest(t, validFields(), []byte("p")), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHandleGenerate_DiskUploadRemoved(t *testing.T) {
	dir := t.TempDir()
	store, err := uploads.NewDiskStore(dir, 0)
	require.NoError(t, err)

	for _, rerr := range []error{nil, errors.New("boom")} {
		r := &fakeRenderer{out: []byte("%PDF"), err: rerr}
		svc := NewReportCardService(testCfg(), r, store)

		_, err := testApp(svc).Test(formRequest(t, validFields(), []byte("p")), -1)
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "render error %v", rerr)
	}
}
