package reportcard

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// Keep pdfcpu from writing its config directory on first use.
	model.ConfigPath = "disable"
}

// sourcePage is the first page of a parsed PDF: its box, its decoded
// content and its resources, still pointing into xt.
type sourcePage struct {
	xt        *model.XRefTable
	box       types.Rectangle
	content   []byte
	resources types.Dict
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ValidateTemplate checks that data is a readable PDF whose first page can
// serve as the background.
func ValidateTemplate(data []byte) error {
	if len(data) == 0 {
		return errors.New("template is empty")
	}
	if err := api.Validate(bytes.NewReader(data), pdfConfig()); err != nil {
		return err
	}
	_, err := readFirstPage(context.Background(), data)
	return err
}

// readFirstPage parses data and extracts page 1. Every call returns its own
// object table, so concurrent renders never share parser state.
func readFirstPage(ctx context.Context, data []byte) (page *sourcePage, err error) {
	defer func() {
		if p := recover(); p != nil {
			page, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()

	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}
	pc, err := pdfcpu.ReadWithContext(ctx, bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, err
	}
	xt := pc.XRefTable
	if err := xt.EnsurePageCount(); err != nil {
		return nil, err
	}
	if xt.PageCount < 1 {
		return nil, errors.New("document has no pages")
	}

	dict, _, attrs, err := xt.PageDict(1, false)
	if err != nil {
		return nil, err
	}
	if dict == nil || attrs == nil {
		return nil, errors.New("page 1 not found")
	}
	if attrs.MediaBox == nil {
		return nil, errors.New("page 1 has no media box")
	}
	box := *attrs.MediaBox
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, fmt.Errorf("page 1 has invalid size %.2fx%.2f", box.Width(), box.Height())
	}

	content, err := xt.PageContent(dict)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return nil, fmt.Errorf("page 1 content: %w", err)
	}

	resources := attrs.Resources
	if resources == nil {
		resources = types.NewDict()
	}
	return &sourcePage{xt: xt, box: box, content: content, resources: resources}, nil
}
