// Package reportcard fills the report card template: it formats the
// submitted values, translates the name and draws everything onto page 0
// of the template PDF.
package reportcard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/image/font/opentype"
	_ "golang.org/x/image/webp"

	"reportcard/internal/metrics"
	u "reportcard/internal/utils"
)

const (
	photoName = "photo"
	producer  = "reportcard"
)

// DefaultCreationDate is written into the document info dictionary unless
// Options.CreationDate is set, so equal requests produce equal documents.
var DefaultCreationDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Request carries the submitted form values.
type Request struct {
	EnglishName      string
	DateOfBirth      string // YYYY-MM-DD
	FatherName       string
	IdentifierNumber string // digits only
	Photo            []byte
}

// Assets are the immutable inputs shared by every render.
type Assets struct {
	Template   []byte
	HindiFont  []byte
	BoldFont   []byte
	MediumFont []byte
}

func (a Assets) font(role FontRole) []byte {
	switch role {
	case FontHindi:
		return a.HindiFont
	case FontBold:
		return a.BoldFont
	default:
		return a.MediumFont
	}
}

// Translator turns text from one language into another.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Options tune a Renderer. Zero fields take the defaults.
type Options struct {
	Layout           *Layout
	SourceLang       string
	TargetLang       string
	TranslateTimeout time.Duration
	CreationDate     time.Time
	DisableCompress  bool
}

// Renderer produces filled report cards. It is safe for concurrent use;
// every call to Render builds a fresh document.
type Renderer struct {
	assets     Assets
	translator Translator
	layout     Layout
	opts       Options

	checkOnce sync.Once
	checkErr  error
}

// New returns a Renderer over assets. tr may be nil, in which case names
// are never translated.
func New(assets Assets, tr Translator, opts Options) *Renderer {
	layout := DefaultLayout
	if opts.Layout != nil {
		layout = *opts.Layout
	}
	if opts.SourceLang == "" {
		opts.SourceLang = "en"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "hi"
	}
	if opts.TranslateTimeout <= 0 {
		opts.TranslateTimeout = 3 * time.Second
	}
	if opts.CreationDate.IsZero() {
		opts.CreationDate = DefaultCreationDate
	}
	return &Renderer{assets: assets, translator: tr, layout: layout, opts: opts}
}

type values struct {
	translatedName string
	englishName    string
	dateOfBirth    string
	identifier     string
	fatherName     string
}

// Render fills the template with req and returns the PDF bytes. Errors are
// *RenderError values; nothing is returned on failure.
func (r *Renderer) Render(ctx context.Context, req Request) (out []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRender(time.Since(start), Outcome(err))
	}()

	id, err := CleanIdentifier(req.IdentifierNumber)
	if err != nil {
		return nil, fail("normalize", ErrInvalidInput, err)
	}
	dob, err := ReorderDate(req.DateOfBirth)
	if err != nil {
		return nil, fail("normalize", ErrInvalidInput, err)
	}
	if err := r.checkAssets(); err != nil {
		return nil, fail("assets", ErrAssetLoad, err)
	}

	v := values{
		translatedName: r.TranslateName(ctx, req.EnglishName),
		englishName:    req.EnglishName,
		dateOfBirth:    dob,
		identifier:     FormatIdentifier(id),
		fatherName:     req.FatherName,
	}

	photo, err := normalizePhoto(req.Photo)
	if err != nil {
		return nil, fail("photo", ErrImageDecode, err)
	}

	tpl, err := readFirstPage(ctx, r.assets.Template)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail("template", ctx.Err(), err)
		}
		return nil, fail("template", ErrAssetLoad, err)
	}
	pageH := tpl.box.Height()

	doc, err := r.newDocument(tpl.box.Width(), pageH)
	if err != nil {
		return nil, fail("fonts", ErrAssetLoad, err)
	}
	if err := r.drawPhoto(doc, pageH, photo); err != nil {
		return nil, fail("photo", ErrImageDecode, err)
	}
	if err := r.drawTexts(doc, pageH, v); err != nil {
		return nil, fail("text", ErrAssetLoad, err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fail("serialize", ErrAssetLoad, err)
	}
	overlay, err := readFirstPage(ctx, buf.Bytes())
	if err != nil {
		return nil, fail("serialize", ErrAssetLoad, err)
	}
	out, err = mergePages(tpl, overlay, mergeOptions{
		compress: !r.opts.DisableCompress,
		created:  r.opts.CreationDate,
		producer: producer,
	})
	if err != nil {
		return nil, fail("merge", ErrAssetLoad, err)
	}
	return out, nil
}

// TranslateName returns the translation of name, or name itself when the
// translator is missing, fails, times out or returns nothing.
func (r *Renderer) TranslateName(ctx context.Context, name string) string {
	if r.translator == nil || strings.TrimSpace(name) == "" {
		return name
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.TranslateTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := r.translator.Translate(ctx, name, r.opts.SourceLang, r.opts.TargetLang)
		done <- result{text, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err == nil && strings.TrimSpace(res.text) == "" {
		res.err = errors.New("empty translation")
	}
	if res.err != nil {
		metrics.TranslationFallbacks.Inc()
		u.Warn("Translation failed, using original name", "error", fmt.Errorf("%w: %w", ErrTranslation, res.err))
		return name
	}
	return res.text
}

// checkAssets runs once per Renderer. The PDF writer silently skips fonts
// it cannot parse, so they are parsed here first, and the template is
// parsed as well.
func (r *Renderer) checkAssets() error {
	r.checkOnce.Do(func() {
		if err := ValidateTemplate(r.assets.Template); err != nil {
			r.checkErr = fmt.Errorf("template: %w", err)
			return
		}
		for _, role := range []FontRole{FontHindi, FontBold, FontMedium} {
			data := r.assets.font(role)
			if len(data) == 0 {
				r.checkErr = fmt.Errorf("font %s is empty", role.family())
				return
			}
			if _, err := opentype.Parse(data); err != nil {
				r.checkErr = fmt.Errorf("font %s: %w", role.family(), err)
				return
			}
		}
	})
	return r.checkErr
}

// normalizePhoto decodes a PNG, JPEG or WebP photo and re-encodes it as an
// 8-bit non-interlaced PNG, the form the PDF writer embeds reliably.
func normalizePhoto(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("photo is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("photo has no pixels")
	}
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

// newDocument starts the overlay: one page of the given size in points
// with the three fonts registered.
func (r *Renderer) newDocument(w, h float64) (doc *fpdf.Fpdf, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("load fonts: %v", p)
		}
	}()

	doc = fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetCreationDate(r.opts.CreationDate)
	doc.SetModificationDate(r.opts.CreationDate)
	doc.SetCatalogSort(true)
	doc.SetCompression(!r.opts.DisableCompress)
	doc.SetProducer(producer, true)
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)

	for _, role := range []FontRole{FontHindi, FontBold, FontMedium} {
		doc.AddUTF8FontFromBytes(role.family(), "", r.assets.font(role))
		if err := doc.Error(); err != nil {
			return nil, fmt.Errorf("font %s: %w", role.family(), err)
		}
	}
	doc.AddPage()
	return doc, doc.Error()
}

// fpdf measures y from the top edge, the layout from the bottom edge.

func (r *Renderer) drawPhoto(doc *fpdf.Fpdf, pageH float64, photo []byte) error {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(photoName, opts, bytes.NewReader(photo))
	if err := doc.Error(); err != nil {
		return err
	}
	p := r.layout.Photo
	doc.ImageOptions(photoName, p.X, pageH-(p.Y+p.H), p.W, p.H, false, opts, 0, "")
	return doc.Error()
}

func (r *Renderer) drawTexts(doc *fpdf.Fpdf, pageH float64, v values) error {
	doc.SetTextColor(0, 0, 0)
	for _, t := range r.layout.texts(v) {
		doc.SetFont(t.field.Font.family(), "", t.field.Size)
		doc.Text(t.field.X, pageH-t.field.Y, t.text)
	}
	return doc.Error()
}
