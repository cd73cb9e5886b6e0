package format

import (
	"encoding/json"
	"io"
	"time"

	"github.com/dhamidi/wikidump/dump"
)

type JSONEncoder struct {
	w    io.Writer
	page *dump.Page
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

// Encode writes page as one indented JSON document followed by a newline.
func (e *JSONEncoder) Encode(page *dump.Page) error {
	e.page = page
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	text = append(text, '\n')
	_, err = e.w.Write(text)
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	data := e.buildPageData()
	return json.MarshalIndent(data, "", "  ")
}

type jsonPage struct {
	Title     string         `json:"title"`
	ID        int64          `json:"id"`
	Redirect  bool           `json:"redirect,omitempty"`
	Revisions []jsonRevision `json:"revisions"`
}

type jsonRevision struct {
	ID          int64            `json:"id"`
	Timestamp   string           `json:"timestamp,omitempty"`
	Contributor *jsonContributor `json:"contributor,omitempty"`
	Comment     string           `json:"comment,omitempty"`
	Minor       bool             `json:"minor,omitempty"`
	Text        *string          `json:"text"`
	Errors      []string         `json:"errors,omitempty"`
}

type jsonContributor struct {
	Username string `json:"username,omitempty"`
	ID       int64  `json:"id"`
}

func (e *JSONEncoder) buildPageData() jsonPage {
	p := e.page
	data := jsonPage{
		Title:     p.Title,
		ID:        p.ID,
		Redirect:  p.Redirect,
		Revisions: make([]jsonRevision, len(p.Revisions)),
	}
	for i, r := range p.Revisions {
		data.Revisions[i] = buildRevision(r)
	}
	return data
}

func buildRevision(r *dump.Revision) jsonRevision {
	rev := jsonRevision{
		ID:      r.ID,
		Comment: r.Comment,
		Minor:   r.Minor,
		Text:    r.Text,
	}
	if !r.Timestamp.IsZero() {
		rev.Timestamp = r.Timestamp.Format(time.RFC3339)
	}
	if c := r.Contributor; c != nil {
		rev.Contributor = &jsonContributor{Username: c.Username, ID: c.ID}
	}
	for _, err := range r.Errs {
		rev.Errors = append(rev.Errors, err.Error())
	}
	return rev
}
