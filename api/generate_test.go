package handler

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"

	"reportcard/internal/reportcard"
	u "reportcard/internal/utils"
)

func bundle(t *testing.T, cfg u.Config) fstest.MapFS {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.Rect(30, 30, 200, 100, "D")
	var tpl bytes.Buffer
	require.NoError(t, doc.Output(&tpl))

	return fstest.MapFS{
		cfg.Assets.Template:   {Data: tpl.Bytes()},
		cfg.Assets.HindiFont:  {Data: goregular.TTF},
		cfg.Assets.BoldFont:   {Data: gobold.TTF},
		cfg.Assets.MediumFont: {Data: gomedium.TTF},
	}
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() u.Config {
	cfg := u.DefaultConfig()
	cfg.Uploads.Mode = "memory"
	cfg.Translate.Disabled = true
	return cfg
}

func TestBuildServesReportCard(t *testing.T) {
	cfg := testConfig()
	h, err := build(cfg, bundle(t, cfg))
	require.NoError(t, err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("english_name", "Asha Verma"))
	require.NoError(t, w.WriteField("dob", "1990-05-17"))
	require.NoError(t, w.WriteField("fatherName", "Ravi Verma"))
	require.NoError(t, w.WriteField("aadharNumber", "123456789012"))
	part, err := w.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = part.Write(photo(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-report-card", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestBuildFailsOnMissingAssets(t *testing.T) {
	_, err := build(testConfig(), fstest.MapFS{})
	assert.True(t, errors.Is(err, reportcard.ErrAssetLoad))
}

func TestServerlessConfigForcesMemoryUploads(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("REPORTCARD_ASSETS_DIR", "/var/task/assets")

	cfg := serverlessConfig()
	assert.Equal(t, "memory", cfg.Uploads.Mode)
	assert.Equal(t, "/var/task/assets", cfg.Assets.Dir)
}
