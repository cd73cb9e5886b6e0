package format

import (
	"encoding"
	"io"

	"github.com/dhamidi/wikidump/dump"
)

// TextEncoder renders pages for people and tools.
type TextEncoder interface {
	encoding.TextMarshaler
	Encode(page *dump.Page) error
}

// New returns the text encoder called name, or nil if there is none.
func New(name string, w io.Writer) TextEncoder {
	switch name {
	case "json":
		return NewJSONEncoder(w)
	case "line":
		return NewLineEncoder(w)
	}
	return nil
}
