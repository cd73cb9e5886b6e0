package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dhamidi/wikidump/dump"
)

// The binary form of a page is
//
//	title      string
//	id         i64
//	redirect   u8
//	count      u32
//	revisions  count × revision
//
// and of a revision
//
//	id           i64
//	timestamp    i64 (unix milliseconds, noTimestamp when unset)
//	contributor  u8 presence, then username string and id i64
//	comment      string
//	minor        u8
//	text         u8 presence, then string
//
// A string is a u32 byte length followed by the UTF-8 bytes. All integers
// are big-endian. A standalone revision record is the page header (title,
// id, redirect) followed by the revision.

const noTimestamp = math.MinInt64

// MaxStringLen bounds the length of a decoded string.
const MaxStringLen = 1 << 30

type writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (w *writer) writeU1(v uint8) {
	if w.err != nil {
		return
	}
	w.buf[0] = v
	_, w.err = w.w.Write(w.buf[:1])
}

func (w *writer) writeBool(v bool) {
	if v {
		w.writeU1(1)
	} else {
		w.writeU1(0)
	}
}

func (w *writer) writeU4(v uint32) {
	if w.err != nil {
		return
	}
	binary.BigEndian.PutUint32(w.buf[:4], v)
	_, w.err = w.w.Write(w.buf[:4])
}

func (w *writer) writeI8(v int64) {
	if w.err != nil {
		return
	}
	binary.BigEndian.PutUint64(w.buf[:8], uint64(v))
	_, w.err = w.w.Write(w.buf[:8])
}

func (w *writer) writeString(s string) {
	if w.err != nil {
		return
	}
	if uint64(len(s)) > math.MaxUint32 {
		w.err = fmt.Errorf("string of %d bytes does not fit a u32 length", len(s))
		return
	}
	w.writeU4(uint32(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) readU1() uint8 {
	if r.err != nil {
		return 0
	}
	var buf [1]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return buf[0]
}

func (r *reader) readBool() bool {
	return r.readU1() != 0
}

func (r *reader) readU4() uint32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

func (r *reader) readI8() int64 {
	if r.err != nil {
		return 0
	}
	var buf [8]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return int64(binary.BigEndian.Uint64(buf[:]))
}

func (r *reader) readString() string {
	return r.readStringN(r.readU4())
}

func (r *reader) readStringN(n uint32) string {
	if r.err != nil {
		return ""
	}
	if n > MaxStringLen {
		r.err = fmt.Errorf("string length %d exceeds %d", n, MaxStringLen)
		return ""
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return string(buf)
}

// eof turns a clean end of input into io.ErrUnexpectedEOF, for reads that
// are not at a record boundary.
func (r *reader) eof() error {
	if errors.Is(r.err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return r.err
}

// Encoder writes pages and revisions in binary form.
type Encoder struct {
	w *writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: &writer{w: w}}
}

func (e *Encoder) EncodePage(p *dump.Page) error {
	e.writeHeader(p.Header())
	if uint64(len(p.Revisions)) > math.MaxUint32 {
		return fmt.Errorf("page %q has too many revisions: %d", p.Title, len(p.Revisions))
	}
	e.w.writeU4(uint32(len(p.Revisions)))
	for _, r := range p.Revisions {
		e.writeRevision(r)
	}
	if e.w.err != nil {
		return fmt.Errorf("write page %q: %w", p.Title, e.w.err)
	}
	return nil
}

// EncodeRevision writes a standalone revision record for the page h.
func (e *Encoder) EncodeRevision(h dump.PageHeader, r *dump.Revision) error {
	e.writeHeader(h)
	e.writeRevision(r)
	if e.w.err != nil {
		return fmt.Errorf("write revision %d: %w", r.ID, e.w.err)
	}
	return nil
}

func (e *Encoder) writeHeader(h dump.PageHeader) {
	e.w.writeString(h.Title)
	e.w.writeI8(h.ID)
	e.w.writeBool(h.Redirect)
}

func (e *Encoder) writeRevision(r *dump.Revision) {
	w := e.w
	w.writeI8(r.ID)
	if r.Timestamp.IsZero() {
		w.writeI8(noTimestamp)
	} else {
		w.writeI8(r.Timestamp.UnixMilli())
	}
	w.writeBool(r.Contributor != nil)
	if c := r.Contributor; c != nil {
		w.writeString(c.Username)
		w.writeI8(c.ID)
	}
	w.writeString(r.Comment)
	w.writeBool(r.Minor)
	w.writeBool(r.Text != nil)
	if r.Text != nil {
		w.writeString(*r.Text)
	}
}

// Decoder reads records written by an Encoder.
type Decoder struct {
	r *reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: &reader{r: r}}
}

// DecodePage reads the next page. It returns io.EOF when the input ends
// before the first byte of a page.
func (d *Decoder) DecodePage() (*dump.Page, error) {
	h, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	p := &dump.Page{Title: h.Title, ID: h.ID, Redirect: h.Redirect}

	count := d.r.readU4()
	if d.r.err != nil {
		return nil, fmt.Errorf("read revision count of %q: %w", h.Title, d.r.eof())
	}
	for i := uint32(0); i < count; i++ {
		r, err := d.readRevision()
		if err != nil {
			return nil, fmt.Errorf("read revision %d of %q: %w", i, h.Title, err)
		}
		r.PageID = p.ID
		p.Revisions = append(p.Revisions, r)
	}
	return p, nil
}

// DecodeRevision reads a standalone revision record.
func (d *Decoder) DecodeRevision() (dump.PageHeader, *dump.Revision, error) {
	h, err := d.readHeader()
	if err != nil {
		return dump.PageHeader{}, nil, err
	}
	r, err := d.readRevision()
	if err != nil {
		return dump.PageHeader{}, nil, fmt.Errorf("read revision of %q: %w", h.Title, err)
	}
	r.PageID = h.ID
	return h, r, nil
}

func (d *Decoder) readHeader() (dump.PageHeader, error) {
	r := d.r
	n := r.readU4()
	if errors.Is(r.err, io.EOF) {
		return dump.PageHeader{}, io.EOF
	}
	h := dump.PageHeader{
		Title:    r.readStringN(n),
		ID:       r.readI8(),
		Redirect: r.readBool(),
	}
	if r.err != nil {
		return dump.PageHeader{}, fmt.Errorf("read page header: %w", r.eof())
	}
	return h, nil
}

func (d *Decoder) readRevision() (*dump.Revision, error) {
	r := d.r
	rev := dump.NewRevision()
	rev.ID = r.readI8()
	if ms := r.readI8(); ms != noTimestamp {
		rev.Timestamp = time.UnixMilli(ms).UTC()
	}
	if r.readBool() {
		c := dump.NewContributor()
		c.Username = r.readString()
		c.ID = r.readI8()
		rev.Contributor = c
	}
	rev.Comment = r.readString()
	rev.Minor = r.readBool()
	if r.readBool() {
		rev.Text = dump.Text(r.readString())
	}
	if r.err != nil {
		return nil, r.eof()
	}
	return rev, nil
}

// MarshalPage returns the binary form of p.
func MarshalPage(p *dump.Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).EncodePage(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalPage decodes a single page from data.
func UnmarshalPage(data []byte) (*dump.Page, error) {
	p, err := NewDecoder(bytes.NewReader(data)).DecodePage()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return p, err
}
