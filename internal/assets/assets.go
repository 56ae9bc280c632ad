// Package assets loads the report card template and fonts and checks that
// they can be used before the first request is served.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/image/font/opentype"

	"reportcard/internal/reportcard"
	u "reportcard/internal/utils"
)

// Paths names the four asset files.
type Paths struct {
	Template   string
	HindiFont  string
	BoldFont   string
	MediumFont string
}

// PathsFromConfig returns the asset file names configured in cfg.
func PathsFromConfig(cfg u.AssetsConfig) Paths {
	return Paths{
		Template:   cfg.Template,
		HindiFont:  cfg.HindiFont,
		BoldFont:   cfg.BoldFont,
		MediumFont: cfg.MediumFont,
	}
}

// Loader produces the asset bundle for a Renderer.
type Loader interface {
	Load() (reportcard.Assets, error)
}

// DiskLoader reads assets from the local file system. Relative paths are
// resolved against Dir.
type DiskLoader struct {
	Dir   string
	Paths Paths
}

// Load implements Loader.
func (l DiskLoader) Load() (reportcard.Assets, error) {
	return load(l.Paths, func(name string) ([]byte, error) {
		if l.Dir != "" && !filepath.IsAbs(name) {
			name = filepath.Join(l.Dir, name)
		}
		return os.ReadFile(name)
	})
}

// FSLoader reads assets from an fs.FS, typically an embed.FS or os.DirFS
// bundled with a serverless function.
type FSLoader struct {
	FS    fs.FS
	Paths Paths
}

// Load implements Loader.
func (l FSLoader) Load() (reportcard.Assets, error) {
	if l.FS == nil {
		return reportcard.Assets{}, fmt.Errorf("%w: no file system", reportcard.ErrAssetLoad)
	}
	return load(l.Paths, func(name string) ([]byte, error) {
		return fs.ReadFile(l.FS, filepath.ToSlash(name))
	})
}

// MemoryLoader hands out assets that are already in memory.
type MemoryLoader struct {
	Assets reportcard.Assets
}

// Load implements Loader.
func (l MemoryLoader) Load() (reportcard.Assets, error) {
	if err := Validate(l.Assets); err != nil {
		return reportcard.Assets{}, err
	}
	return l.Assets, nil
}

func load(p Paths, read func(string) ([]byte, error)) (reportcard.Assets, error) {
	var a reportcard.Assets
	files := []struct {
		name string
		dst  *[]byte
	}{
		{p.Template, &a.Template},
		{p.HindiFont, &a.HindiFont},
		{p.BoldFont, &a.BoldFont},
		{p.MediumFont, &a.MediumFont},
	}
	for _, f := range files {
		if f.name == "" {
			return reportcard.Assets{}, fmt.Errorf("%w: asset path is empty", reportcard.ErrAssetLoad)
		}
		data, err := read(f.name)
		if err != nil {
			return reportcard.Assets{}, fmt.Errorf("%w: read %s: %w", reportcard.ErrAssetLoad, f.name, err)
		}
		*f.dst = data
	}
	if err := Validate(a); err != nil {
		return reportcard.Assets{}, err
	}
	u.Info("Assets loaded",
		"template_bytes", len(a.Template),
		"hindi_font_bytes", len(a.HindiFont),
		"bold_font_bytes", len(a.BoldFont),
		"medium_font_bytes", len(a.MediumFont),
	)
	return a, nil
}

// Validate checks that the template is a readable PDF with at least one
// page and that every font parses. Failures wrap reportcard.ErrAssetLoad.
func Validate(a reportcard.Assets) error {
	if err := reportcard.ValidateTemplate(a.Template); err != nil {
		return fmt.Errorf("%w: template: %w", reportcard.ErrAssetLoad, err)
	}
	fonts := []struct {
		role string
		data []byte
	}{
		{"hindi", a.HindiFont},
		{"bold", a.BoldFont},
		{"medium", a.MediumFont},
	}
	for _, f := range fonts {
		if len(f.data) == 0 {
			return fmt.Errorf("%w: %s font is empty", reportcard.ErrAssetLoad, f.role)
		}
		if _, err := opentype.Parse(f.data); err != nil {
			return fmt.Errorf("%w: %s font: %w", reportcard.ErrAssetLoad, f.role, err)
		}
	}
	return nil
}
