package parser

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/dhamidi/wikidump/dump"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("wikidump.parser")

type Option func(*options)

type options struct {
	name string
	log  commonlog.Logger
}

// WithName names the input in log messages and errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithLogger(l commonlog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(opts []Option) options {
	o := options{name: "<input>", log: log}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// driver feeds lines to the state machine and owns the window bookkeeping.
//
// A page belongs to the window that contains the first byte of its <page>
// line. A driver whose window does not start at 0 drops the partial line it
// starts in and ignores everything up to the first page start, since that
// data belongs to the previous window. It stops at the first page start at
// or beyond the end of its window, but finishes a page that started inside
// the window even when the page extends past the end.
type driver struct {
	opts   options
	lines  LineSource
	src    *Source // nil when lines carries no offsets
	start  int64
	length int64 // < 0 for an unbounded stream
	skip   bool  // drop the first (partial) line before parsing
	st     state
	done   bool
}

func newDriver(lines LineSource, keep bool, opts []Option) *driver {
	d := &driver{
		opts:   buildOptions(opts),
		lines:  lines,
		length: -1,
		st:     newState(keep),
	}
	if src, ok := lines.(*Source); ok {
		d.src = src
		d.start = src.Offset()
	}
	return d
}

func newSectionDriver(ra io.ReaderAt, start, length int64, keep bool, opts []Option) *driver {
	base := start
	if start > 0 {
		// begin one byte early so a line starting exactly at start is kept
		base = start - 1
	}
	src := NewSource(io.NewSectionReader(ra, base, math.MaxInt64-base), base)
	d := newDriver(src, keep, opts)
	d.start = start
	d.length = length
	d.skip = start > 0
	return d
}

func (d *driver) end() int64 {
	return d.start + d.length
}

// pastEnd reports whether a line at offset off lies beyond the window.
func (d *driver) pastEnd(off int64) bool {
	return d.src != nil && d.length >= 0 && off >= d.end()
}

// next returns the next non-empty event, or io.EOF.
func (d *driver) next() (event, error) {
	if d.done {
		return event{}, io.EOF
	}
	if d.skip {
		d.skip = false
		if _, err := d.lines.ReadLine(); err != nil {
			return d.fail(err, d.start)
		}
	}

	for {
		var off int64
		if d.src != nil {
			off = d.src.Offset()
		}
		if d.st.phase == awaitingPage && d.pastEnd(off) {
			d.done = true
			return event{}, io.EOF
		}

		line, err := d.lines.ReadLine()
		if err != nil {
			return d.fail(err, off)
		}

		if d.pastEnd(off) && isPageStart(line) {
			// the overhanging page ran into the next window's first page
			// without closing; complete it and stop.
			d.done = true
			var ev event
			d.st, ev = finish(d.st)
			return d.result(ev)
		}

		var ev event
		d.st, ev = step(d.st, line)
		if !ev.empty() {
			return ev, nil
		}
	}
}

func (d *driver) fail(err error, off int64) (event, error) {
	d.done = true
	if errors.Is(err, io.EOF) {
		var ev event
		d.st, ev = finish(d.st)
		if ev.page != nil && !ev.page.Seen.Has(dump.FieldEnd) {
			d.opts.log.Debugf("%s: input ended inside page %q", d.opts.name, ev.page.Title)
		}
		return d.result(ev)
	}
	return event{}, fmt.Errorf("%s: read line at offset %d: %w", d.opts.name, off, err)
}

func (d *driver) result(ev event) (event, error) {
	if ev.empty() {
		return event{}, io.EOF
	}
	return ev, nil
}

// progress is the share of the window consumed so far. It exceeds 1 while
// an overhanging page is finished, and is 0 until the byte before start,
// read to find the first line, has been passed.
func (d *driver) progress() float64 {
	if d.src == nil || d.length <= 0 {
		return 0
	}
	return float64(max(d.src.Offset()-d.start, 0)) / float64(d.length)
}

// Reader reads whole pages, revisions included.
type Reader struct {
	d *driver
}

// NewReader reads pages from the start of r to its end.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return &Reader{d: newDriver(NewSource(r, 0), true, opts)}
}

// NewLineReader reads pages from an arbitrary line source.
func NewLineReader(lines LineSource, opts ...Option) *Reader {
	return &Reader{d: newDriver(lines, true, opts)}
}

// NewSectionReader reads the pages whose <page> line starts within
// [start, start+length) of ra. Reading continues past start+length until
// the last such page is complete.
func NewSectionReader(ra io.ReaderAt, start, length int64, opts ...Option) *Reader {
	return &Reader{d: newSectionDriver(ra, start, length, true, opts)}
}

// Next returns the next page that has a title. Pages without a title are
// dropped. It returns io.EOF after the last page.
func (r *Reader) Next() (*dump.Page, error) {
	for {
		ev, err := r.d.next()
		if err != nil {
			return nil, err
		}
		if ev.page == nil {
			continue
		}
		if !ev.page.Seen.Has(dump.FieldTitle) {
			r.d.opts.log.Debugf("%s: dropping page %d without title", r.d.opts.name, ev.page.ID)
			continue
		}
		logFieldErrors(r.d.opts, ev.page)
		return ev.page, nil
	}
}

// All iterates over the remaining pages. Iteration stops after the first
// error, which is yielded with a nil page.
func (r *Reader) All() iter.Seq2[*dump.Page, error] {
	return func(yield func(*dump.Page, error) bool) {
		for {
			p, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) Progress() float64 {
	return r.d.progress()
}

// RevisionReader reads one revision at a time. Revisions are not kept in
// their page, so pages with long histories need not fit in memory.
type RevisionReader struct {
	d *driver
}

func NewRevisionReader(r io.Reader, opts ...Option) *RevisionReader {
	return &RevisionReader{d: newDriver(NewSource(r, 0), false, opts)}
}

func NewRevisionSectionReader(ra io.ReaderAt, start, length int64, opts ...Option) *RevisionReader {
	return &RevisionReader{d: newSectionDriver(ra, start, length, false, opts)}
}

// Next returns the next revision of a page with a title, together with the
// header of that page as it was known when the revision ended.
func (r *RevisionReader) Next() (dump.PageHeader, *dump.Revision, error) {
	for {
		ev, err := r.d.next()
		if err != nil {
			return dump.PageHeader{}, nil, err
		}
		if ev.rev == nil {
			continue
		}
		if !ev.revPage.Seen.Has(dump.FieldTitle) {
			continue
		}
		for _, err := range ev.rev.Errs {
			r.d.opts.log.Warningf("%s: revision %d: %v", r.d.opts.name, ev.rev.ID, err)
		}
		return ev.revPage.Header(), ev.rev, nil
	}
}

func (r *RevisionReader) Progress() float64 {
	return r.d.progress()
}

func logFieldErrors(o options, p *dump.Page) {
	for _, rev := range p.Revisions {
		for _, err := range rev.Errs {
			o.log.Warningf("%s: page %q revision %d: %v", o.name, p.Title, rev.ID, err)
		}
	}
}
