package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dhamidi/wikidump/dump"
)

// LineEncoder writes one tab separated line for the page and one for each
// of its revisions. Text is summarized by its length.
type LineEncoder struct {
	w    io.Writer
	page *dump.Page
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(page *dump.Page) error {
	e.page = page
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	p := e.page

	fmt.Fprintf(&sb, "page\t%s\t%d\t%s\t%d\n", p.Title, p.ID, e.pageFlagsStr(), len(p.Revisions))

	for _, r := range p.Revisions {
		fmt.Fprintf(&sb, "revision\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			timestampStr(r.Timestamp),
			contributorStr(r.Contributor),
			revisionFlagsStr(r),
			textStr(r.Text),
			strconv.Quote(r.Comment),
		)
	}

	return []byte(sb.String()), nil
}

func (e *LineEncoder) pageFlagsStr() string {
	if e.page.Redirect {
		return "redirect"
	}
	return "-"
}

func revisionFlagsStr(r *dump.Revision) string {
	var flags []string
	if r.Minor {
		flags = append(flags, "minor")
	}
	if len(r.Errs) > 0 {
		flags = append(flags, "errors")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func timestampStr(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func contributorStr(c *dump.Contributor) string {
	if c == nil {
		return "-"
	}
	return c.String()
}

func textStr(text *string) string {
	if text == nil {
		return "-"
	}
	return strconv.Itoa(len(*text))
}
