package store

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/format"
	"golang.org/x/crypto/blake2b"
)

// A store file holds the encoded pages in the order they were added,
// followed by an index of (key, offset, length, checksum) entries sorted by
// key and a fixed size footer:
//
//	magic        4 bytes
//	records      ...
//	index count  u32
//	entries      count × (key string, offset i64, length u32, blake2b-256 of the record)
//	index offset i64
//	magic        4 bytes
var magic = [4]byte{'W', 'K', 'D', 'S'}

// ErrCorrupt is returned by Get when a record does not match its checksum.
var ErrCorrupt = errors.New("corrupt record")

// footerSize is the index offset plus the trailing magic.
const footerSize = 8 + 4

type entry struct {
	key    string
	offset int64
	length uint32
	sum    [blake2b.Size256]byte

	// order decides which of several pages with the same key is kept. It
	// is not written to the file.
	order uint64
}

// Builder writes a store file. Pages may be added in any order; the index
// is sorted when the builder is closed.
type Builder struct {
	w       *bufio.Writer
	off     int64
	entries []entry
	buf     bytes.Buffer
	next    uint64
	err     error
}

func NewBuilder(w io.Writer) *Builder {
	b := &Builder{w: bufio.NewWriter(w)}
	b.write(magic[:])
	return b
}

func (b *Builder) write(p []byte) {
	if b.err != nil {
		return
	}
	var n int
	n, b.err = b.w.Write(p)
	b.off += int64(n)
}

// Add appends p under its normalized title, ordered after every page added
// before it.
func (b *Builder) Add(p *dump.Page) error {
	return b.AddOrdered(p, b.next)
}

// AddOrdered appends p with an explicit order. Of several pages with the
// same key, the one with the lowest order is kept, whatever order they were
// added in.
func (b *Builder) AddOrdered(p *dump.Page, order uint64) error {
	if b.err != nil {
		return b.err
	}
	b.buf.Reset()
	if err := format.NewEncoder(&b.buf).EncodePage(p); err != nil {
		return err
	}
	if b.buf.Len() > format.MaxStringLen {
		return fmt.Errorf("page %q is too large to store: %d bytes", p.Title, b.buf.Len())
	}
	b.entries = append(b.entries, entry{
		key:    p.NormalizedTitle(),
		offset: b.off,
		length: uint32(b.buf.Len()),
		sum:    blake2b.Sum256(b.buf.Bytes()),
		order:  order,
	})
	b.next = max(b.next, order+1)
	b.write(b.buf.Bytes())
	if b.err != nil {
		return fmt.Errorf("write page %q: %w", p.Title, b.err)
	}
	return nil
}

// Close writes the index and the footer. It does not close the underlying
// writer. Of several pages with the same key only the lowest ordered is
// kept.
func (b *Builder) Close() error {
	if b.err != nil {
		return b.err
	}
	slices.SortStableFunc(b.entries, func(x, y entry) int {
		return cmp.Or(cmp.Compare(x.key, y.key), cmp.Compare(x.order, y.order))
	})
	b.entries = slices.CompactFunc(b.entries, func(x, y entry) bool {
		if x.key == y.key {
			log.Warningf("duplicate title %q, keeping the earliest page", x.key)
			return true
		}
		return false
	})

	indexOffset := b.off
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(b.entries)))
	b.write(scratch[:4])
	for _, e := range b.entries {
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(e.key)))
		b.write(scratch[:4])
		b.write([]byte(e.key))
		binary.BigEndian.PutUint64(scratch[:], uint64(e.offset))
		b.write(scratch[:])
		binary.BigEndian.PutUint32(scratch[:4], e.length)
		b.write(scratch[:4])
		b.write(e.sum[:])
	}
	binary.BigEndian.PutUint64(scratch[:], uint64(indexOffset))
	b.write(scratch[:])
	b.write(magic[:])
	if b.err == nil {
		b.err = b.w.Flush()
	}
	if b.err != nil {
		return fmt.Errorf("write index: %w", b.err)
	}
	log.Infof("wrote index of %d pages", len(b.entries))
	b.err = errors.New("store builder closed")
	return nil
}

// Build writes pages to w as a complete store file.
func Build(w io.Writer, pages []*dump.Page) error {
	b := NewBuilder(w)
	for _, p := range pages {
		if err := b.Add(p); err != nil {
			return err
		}
	}
	return b.Close()
}

// FileStore serves lookups from a store file. The index is held in memory;
// pages are read from the file on demand.
type FileStore struct {
	f       *os.File
	r       io.ReaderAt
	entries []entry
}

// Open loads the index of the store file at path. The returned store must
// be closed by the caller.
func Open(path string) (*FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat store: %w", err)
	}
	s, err := newFileStore(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}
	s.f = f
	return s, nil
}

func newFileStore(r io.ReaderAt, size int64) (*FileStore, error) {
	if size < int64(len(magic)+4+footerSize) {
		return nil, errors.New("file too short")
	}
	var head [4]byte
	if _, err := r.ReadAt(head[:], 0); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	var footer [footerSize]byte
	if _, err := r.ReadAt(footer[:], size-footerSize); err != nil {
		return nil, fmt.Errorf("read footer: %w", err)
	}
	if head != magic || [4]byte(footer[8:]) != magic {
		return nil, errors.New("not a store file")
	}
	indexOffset := int64(binary.BigEndian.Uint64(footer[:8]))
	if indexOffset < int64(len(magic)) || indexOffset > size-footerSize {
		return nil, fmt.Errorf("invalid index offset %d", indexOffset)
	}

	br := bufio.NewReader(io.NewSectionReader(r, indexOffset, size-footerSize-indexOffset))
	var scratch [8]byte
	if _, err := io.ReadFull(br, scratch[:4]); err != nil {
		return nil, fmt.Errorf("read index count: %w", err)
	}
	count := binary.BigEndian.Uint32(scratch[:4])
	entries := make([]entry, 0, min(count, 1<<20))
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(br)
		if err != nil {
			return nil, fmt.Errorf("read index entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return &FileStore{r: r, entries: entries}, nil
}

func readEntry(r io.Reader) (entry, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return entry{}, err
	}
	key := make([]byte, binary.BigEndian.Uint32(scratch[:4]))
	if _, err := io.ReadFull(r, key); err != nil {
		return entry{}, err
	}
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return entry{}, err
	}
	e := entry{key: string(key), offset: int64(binary.BigEndian.Uint64(scratch[:]))}
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return entry{}, err
	}
	e.length = binary.BigEndian.Uint32(scratch[:4])
	if _, err := io.ReadFull(r, e.sum[:]); err != nil {
		return entry{}, err
	}
	return e, nil
}

// Len returns the number of pages in the store.
func (s *FileStore) Len() int {
	return len(s.entries)
}

// Titles returns the normalized titles in the store, sorted.
func (s *FileStore) Titles() []string {
	titles := make([]string, len(s.entries))
	for i, e := range s.entries {
		titles[i] = e.key
	}
	return titles
}

func (s *FileStore) Get(ctx context.Context, title string) (*dump.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := dump.NormalizeTitle(title)
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].key >= key
	})
	if i == len(s.entries) || s.entries[i].key != key {
		return nil, fmt.Errorf("get %q: %w", title, ErrNotFound)
	}
	e := s.entries[i]
	data := make([]byte, e.length)
	if _, err := s.r.ReadAt(data, e.offset); err != nil {
		return nil, fmt.Errorf("read page %q: %w", title, err)
	}
	if blake2b.Sum256(data) != e.sum {
		return nil, fmt.Errorf("read page %q at offset %d: %w", title, e.offset, ErrCorrupt)
	}
	p, err := format.UnmarshalPage(data)
	if err != nil {
		return nil, fmt.Errorf("decode page %q: %w", title, err)
	}
	return p, nil
}

func (s *FileStore) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
