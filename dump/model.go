// Package dump holds the records recovered from a MediaWiki XML dump:
// pages, their revisions and the contributors of those revisions.
package dump

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// NoID marks an id that has not been observed in the input.
const NoID int64 = -1

// Fields is a set of fields observed while a record was parsed.
type Fields uint16

const (
	FieldTitle Fields = 1 << iota
	FieldID
	FieldRedirect
	FieldTimestamp
	FieldContributor
	FieldComment
	FieldMinor
	FieldText
	FieldUsername
	// FieldEnd is set once the closing tag of the record was seen.
	FieldEnd
)

func (f Fields) Has(field Fields) bool {
	return f&field == field
}

var fieldNames = []string{
	"title", "id", "redirect", "timestamp", "contributor",
	"comment", "minor", "text", "username", "end",
}

func (f Fields) String() string {
	var names []string
	for i, name := range fieldNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// Page is one article together with the revisions found for it.
type Page struct {
	Title     string
	ID        int64
	Redirect  bool
	Revisions []*Revision

	// Seen records which fields were parsed. It is not part of the encoded
	// form.
	Seen Fields
}

// PageHeader is the identity part of a page without its revisions.
type PageHeader struct {
	Title    string
	ID       int64
	Redirect bool
}

func NewPage() *Page {
	return &Page{ID: NoID}
}

func (p *Page) Header() PageHeader {
	return PageHeader{Title: p.Title, ID: p.ID, Redirect: p.Redirect}
}

// Complete reports whether the page had a title and its closing tag was seen.
func (p *Page) Complete() bool {
	return p.Seen.Has(FieldTitle) && p.Seen.Has(FieldEnd)
}

func (p *Page) NormalizedTitle() string {
	return NormalizeTitle(p.Title)
}

// URL returns the article URL on the wikipedia of the given language.
func (p *Page) URL(lang string) string {
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", lang, p.NormalizedTitle())
}

// ReversedURL returns the URL with a reversed host, as used for sorted keys.
func (p *Page) ReversedURL(lang string) string {
	return fmt.Sprintf("org.wikipedia.%s/wiki/%s", lang, p.NormalizedTitle())
}

// FindRevision returns the revision with the given id, or the last one for
// NoID.
func (p *Page) FindRevision(id int64) (*Revision, error) {
	if len(p.Revisions) == 0 {
		return nil, fmt.Errorf("page %q has no revisions", p.Title)
	}
	if id == NoID {
		return p.Revisions[len(p.Revisions)-1], nil
	}
	for _, r := range p.Revisions {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("page %q has no revision %d", p.Title, id)
}

func (p *Page) String() string {
	return fmt.Sprintf("title:%s id:%d redirect:%t revisions:%d", p.Title, p.ID, p.Redirect, len(p.Revisions))
}

// Revision is one historical version of a page.
type Revision struct {
	ID          int64
	Timestamp   time.Time
	Contributor *Contributor
	Comment     string
	// Text is nil when the dump omits the body, and points to an empty
	// string for an explicitly empty body.
	Text  *string
	Minor bool

	// PageID refers to the owning page by identity. It is NoID when the
	// page id had not been seen when the revision started.
	PageID int64

	Seen Fields
	Errs []error
}

func NewRevision() *Revision {
	return &Revision{ID: NoID, PageID: NoID}
}

// TextOr returns the text of the revision or def when it has none.
func (r *Revision) TextOr(def string) string {
	if r.Text == nil {
		return def
	}
	return *r.Text
}

// UnescapedComment returns the comment with character references decoded.
// Comments are stored as they appear in the dump.
func (r *Revision) UnescapedComment() string {
	return html.UnescapeString(r.Comment)
}

func (r *Revision) String() string {
	return fmt.Sprintf("id:%d timestamp:%s contributor:%v comment:%q minor:%t text:%d bytes",
		r.ID, r.Timestamp.Format(time.RFC3339), r.Contributor, r.Comment, r.Minor, len(r.TextOr("")))
}

// Contributor is the author of a revision.
type Contributor struct {
	Username string
	ID       int64

	Seen Fields
}

func NewContributor() *Contributor {
	return &Contributor{ID: NoID}
}

func (c *Contributor) String() string {
	return fmt.Sprintf("%s(%d)", c.Username, c.ID)
}

// NormalizeTitle turns a page title into the key used for lookups and URLs:
// character references are decoded, the result is NFC normalized and spaces
// become underscores.
func NormalizeTitle(title string) string {
	title = html.UnescapeString(title)
	title = norm.NFC.String(title)
	return strings.ReplaceAll(title, " ", "_")
}

// Text returns a pointer to s, for building revisions with a body.
func Text(s string) *string {
	return &s
}
