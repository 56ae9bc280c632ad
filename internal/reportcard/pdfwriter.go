package reportcard

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfWriter assembles the output document. Objects are numbered in the
// order they are reserved and written in that order, and dictionaries are
// walked in key order, so equal inputs give equal bytes.
type pdfWriter struct {
	objs     [][]byte
	compress bool
}

func (w *pdfWriter) reserve() types.IndirectRef {
	w.objs = append(w.objs, nil)
	return *types.NewIndirectRef(len(w.objs), 0)
}

func (w *pdfWriter) put(ref types.IndirectRef, o types.Object) {
	body := "null"
	if o != nil {
		body = o.PDFString()
	}
	w.objs[ref.ObjectNumber.Value()-1] = []byte(body)
}

func (w *pdfWriter) putStream(ref types.IndirectRef, d types.Dict, raw []byte) {
	d.Update("Length", types.Integer(len(raw)))
	var b bytes.Buffer
	b.WriteString(d.PDFString())
	b.WriteString("\nstream\n")
	b.Write(raw)
	b.WriteString("\nendstream")
	w.objs[ref.ObjectNumber.Value()-1] = b.Bytes()
}

// putContent stores content as a stream, flate encoded unless compression
// is off.
func (w *pdfWriter) putContent(ref types.IndirectRef, d types.Dict, content []byte) error {
	if !w.compress {
		w.putStream(ref, d, content)
		return nil
	}
	f, err := filter.NewFilter(filter.Flate, nil)
	if err != nil {
		return err
	}
	r, err := f.Encode(bytes.NewReader(content))
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.Update("Filter", types.Name(filter.Flate))
	w.putStream(ref, d, raw)
	return nil
}

// form copies src into a form XObject. matrix may be nil.
func (w *pdfWriter) form(src *sourcePage, matrix types.Array) (types.IndirectRef, error) {
	ref := w.reserve()
	c := objectCopier{src: src.xt, dst: w, copied: make(map[int]types.IndirectRef)}
	res, err := c.copyDict(src.resources)
	if err != nil {
		return ref, err
	}
	d := types.Dict{
		"Type":      types.Name("XObject"),
		"Subtype":   types.Name("Form"),
		"BBox":      rectArray(src.box),
		"Resources": res,
	}
	if matrix != nil {
		d["Matrix"] = matrix
	}
	return ref, w.putContent(ref, d, src.content)
}

func (w *pdfWriter) bytes(root, info types.IndirectRef) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(w.objs))
	for i, body := range w.objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n", i+1)
		if body == nil {
			body = []byte("null")
		}
		b.Write(body)
		b.WriteString("\nendobj\n")
	}

	sum := md5.Sum(b.Bytes())
	id := hex.EncodeToString(sum[:])

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(w.objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d /Root %s /Info %s /ID [<%s><%s>]>>\n",
		len(w.objs)+1, root.PDFString(), info.PDFString(), id, id)
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xref)
	return b.Bytes()
}

// objectCopier copies objects out of a parsed document into a pdfWriter,
// renumbering them on the way.
type objectCopier struct {
	src    *model.XRefTable
	dst    *pdfWriter
	copied map[int]types.IndirectRef
}

func (c *objectCopier) copy(o types.Object) (types.Object, error) {
	switch o := o.(type) {
	case types.IndirectRef:
		return c.copyRef(o)
	case types.Dict:
		return c.copyDict(o)
	case types.Array:
		a := make(types.Array, len(o))
		for i, v := range o {
			cv, err := c.copy(v)
			if err != nil {
				return nil, err
			}
			a[i] = cv
		}
		return a, nil
	case types.StreamDict:
		return nil, errors.New("stream is not an indirect object")
	default:
		return o, nil
	}
}

func (c *objectCopier) copyRef(ir types.IndirectRef) (types.Object, error) {
	if ref, ok := c.copied[ir.ObjectNumber.Value()]; ok {
		return ref, nil
	}
	ref := c.dst.reserve()
	c.copied[ir.ObjectNumber.Value()] = ref

	target, err := c.src.Dereference(ir)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", ir.ObjectNumber.Value(), err)
	}
	if sd, ok := target.(types.StreamDict); ok {
		d, err := c.copyDict(sd.Dict, "Length")
		if err != nil {
			return nil, err
		}
		c.dst.putStream(ref, d, sd.Raw)
		return ref, nil
	}
	v, err := c.copy(target)
	if err != nil {
		return nil, err
	}
	c.dst.put(ref, v)
	return ref, nil
}

// copyDict drops Parent, so a copied resource never drags in the page
// tree, and any key listed in skip.
func (c *objectCopier) copyDict(d types.Dict, skip ...string) (types.Dict, error) {
	keys := make([]string, 0, len(d))
	for k := range d {
		if k != "Parent" && !slices.Contains(skip, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := types.NewDict()
	for _, k := range keys {
		v, err := c.copy(d[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func rectArray(r types.Rectangle) types.Array {
	return types.NewNumberArray(r.LL.X, r.LL.Y, r.UR.X, r.UR.Y)
}

type mergeOptions struct {
	compress bool
	created  time.Time
	producer string
}

// mergePages draws overlay on top of background on a single page the size
// of background. The overlay's origin is moved to the background's lower
// left corner.
func mergePages(background, overlay *sourcePage, opts mergeOptions) ([]byte, error) {
	w := &pdfWriter{compress: opts.compress}
	catalog := w.reserve()
	pages := w.reserve()
	page := w.reserve()
	contents := w.reserve()

	bg, err := w.form(background, nil)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	var shift types.Array
	if ll := background.box.LL; ll.X != 0 || ll.Y != 0 {
		shift = types.NewNumberArray(1, 0, 0, 1, ll.X, ll.Y)
	}
	fg, err := w.form(overlay, shift)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	w.put(catalog, types.Dict{
		"Type":  types.Name("Catalog"),
		"Pages": pages,
	})
	w.put(pages, types.Dict{
		"Type":  types.Name("Pages"),
		"Kids":  types.Array{page},
		"Count": types.Integer(1),
	})
	w.put(page, types.Dict{
		"Type":     types.Name("Page"),
		"Parent":   pages,
		"MediaBox": rectArray(background.box),
		"Resources": types.Dict{
			"XObject": types.Dict{"Tpl": bg, "Fill": fg},
		},
		"Contents": contents,
	})
	if err := w.putContent(contents, types.NewDict(), []byte("q /Tpl Do Q\nq /Fill Do Q\n")); err != nil {
		return nil, err
	}

	info := w.reserve()
	date := types.StringLiteral(types.DateString(opts.created))
	w.put(info, types.Dict{
		"Producer":     types.StringLiteral(opts.producer),
		"CreationDate": date,
		"ModDate":      date,
	})
	return w.bytes(catalog, info), nil
}
