package reportcard

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetLoad means the template or a font is missing or corrupt.
	ErrAssetLoad = errors.New("asset load failed")
	// ErrImageDecode means the uploaded photo is not a usable image.
	ErrImageDecode = errors.New("photo decode failed")
	// ErrTranslation means the name could not be translated. Render never
	// returns it; the English name is used instead.
	ErrTranslation = errors.New("translation failed")
	// ErrInvalidInput means a request field is malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// RenderError is returned by Render. Kind is one of the sentinel errors
// above and Stage names the step that failed.
type RenderError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RenderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func fail(stage string, kind, err error) *RenderError {
	return &RenderError{Stage: stage, Kind: kind, Err: err}
}

// Outcome labels err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrImageDecode):
		return "image_decode"
	case errors.Is(err, ErrAssetLoad):
		return "asset_load"
	default:
		return "error"
	}
}
