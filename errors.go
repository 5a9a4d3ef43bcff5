package portrait

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateLayer  = errors.New("layer index is used more than once")
	ErrNegativeLayer   = errors.New("layer index must be non-negative")
	ErrStaleGeneration = errors.New("composite superseded by a newer generation")
	ErrUnknownPart     = errors.New("image source is not offered by that layer")
	ErrUnknownLayer    = errors.New("body type has no layer at that index")
)

// ImageLoadError reports one layer whose image could not be loaded or decoded.
type ImageLoadError struct {
	Index  int
	Source string
	Err    error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load layer %d image %q: %v", e.Index, e.Source, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// FailedSources lists the sources of every ImageLoadError found in errs.
func FailedSources(errs []error) []string {
	var out []string
	for _, err := range errs {
		var le *ImageLoadError
		if errors.As(err, &le) {
			out = append(out, le.Source)
		}
	}
	return out
}
