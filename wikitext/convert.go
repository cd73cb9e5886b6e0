// Package wikitext renders the markup of a revision as plain text or HTML.
package wikitext

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dhamidi/wikidump/dump"
	"golang.org/x/net/html"
)

// ErrNoText is returned by Render for revisions whose text was omitted.
var ErrNoText = errors.New("revision has no text")

var errInvalidUTF8 = errors.New("text is not valid UTF-8")

// ConversionError reports a revision whose markup could not be converted.
type ConversionError struct {
	Title    string
	Revision int64
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %q revision %d: %v", e.Title, e.Revision, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Converter turns the markup of one revision into another representation.
type Converter interface {
	PlainText(text, title string, revID int64) (string, error)
	HTML(text, title string, revID int64) (string, error)
}

// Mode selects the output of Render.
type Mode int

const (
	ModePlain Mode = iota
	ModeHTML
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeHTML:
		return "html"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "plain", "text":
		return ModePlain, nil
	case "html":
		return ModeHTML, nil
	}
	return 0, fmt.Errorf("unknown render mode: %s (expected plain or html)", s)
}

// Render converts the text of rev. Revisions without text fail with
// ErrNoText, wrapped in a ConversionError.
func Render(conv Converter, rev *dump.Revision, title string, mode Mode) (string, error) {
	if rev.Text == nil {
		return "", &ConversionError{Title: title, Revision: rev.ID, Err: ErrNoText}
	}
	if mode == ModeHTML {
		return conv.HTML(*rev.Text, title, rev.ID)
	}
	return conv.PlainText(*rev.Text, title, rev.ID)
}

type Option func(*Markup)

// WithMaxDepth limits how deeply templates may nest before conversion
// fails.
func WithMaxDepth(depth int) Option {
	return func(m *Markup) {
		m.maxDepth = depth
	}
}

// WithLinkPrefix sets the path article links point to.
func WithLinkPrefix(prefix string) Option {
	return func(m *Markup) {
		m.linkPrefix = prefix
	}
}

// Markup is the default Converter. It understands the common constructs
// of article text: headings, paragraphs, lists, links and emphasis.
// Templates, tables, references and comments are dropped.
type Markup struct {
	maxDepth   int
	linkPrefix string
}

func NewMarkup(opts ...Option) *Markup {
	m := &Markup{maxDepth: 40, linkPrefix: "/wiki/"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Markup) PlainText(text, title string, revID int64) (string, error) {
	root, err := m.parse(text)
	if err != nil {
		return "", &ConversionError{Title: title, Revision: revID, Err: err}
	}
	return plainText(root), nil
}

func (m *Markup) HTML(text, title string, revID int64) (string, error) {
	root, err := m.parse(text)
	if err != nil {
		return "", &ConversionError{Title: title, Revision: revID, Err: err}
	}
	root.Attr = []html.Attribute{
		{Key: "class", Val: "wikitext"},
		{Key: "data-title", Val: title},
		{Key: "data-revision", Val: fmt.Sprint(revID)},
	}
	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return "", &ConversionError{Title: title, Revision: revID, Err: err}
	}
	return sb.String(), nil
}

func (m *Markup) parse(text string) (*html.Node, error) {
	if !utf8.ValidString(text) {
		return nil, errInvalidUTF8
	}
	text, err := m.preprocess(text)
	if err != nil {
		return nil, err
	}
	p := &blockParser{m: m, root: element("div")}
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	return p.root, nil
}
