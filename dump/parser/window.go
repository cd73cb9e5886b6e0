package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dhamidi/wikidump/dump"
	"golang.org/x/sync/errgroup"
)

// Window is a byte range of a dump assigned to one reader.
type Window struct {
	Start  int64
	Length int64
}

func (w Window) End() int64 {
	return w.Start + w.Length
}

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d)", w.Start, w.End())
}

// Split cuts size bytes into consecutive windows of at most chunk bytes.
func Split(size, chunk int64) []Window {
	if size <= 0 {
		return nil
	}
	if chunk <= 0 || chunk > size {
		chunk = size
	}
	var windows []Window
	for start := int64(0); start < size; start += chunk {
		length := chunk
		if start+length > size {
			length = size - start
		}
		windows = append(windows, Window{Start: start, Length: length})
	}
	return windows
}

// SplitN cuts size bytes into n windows of about equal length.
func SplitN(size int64, n int) []Window {
	if n <= 0 {
		n = 1
	}
	chunk := (size + int64(n) - 1) / int64(n)
	return Split(size, chunk)
}

// ReadAll reads every window of ra with its own reader, at most limit at a
// time (no limit when limit <= 0), and returns the pages in file order.
// Cancelling ctx stops the readers between pages.
func ReadAll(ctx context.Context, ra io.ReaderAt, windows []Window, limit int, opts ...Option) ([]*dump.Page, error) {
	results := make([][]*dump.Page, len(windows))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, w := range windows {
		g.Go(func() error {
			wopts := append(append([]Option{}, opts...), WithName(fmt.Sprintf("window %s", w)))
			r := NewSectionReader(ra, w.Start, w.Length, wopts...)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := r.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				results[i] = append(results[i], p)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pages []*dump.Page
	for _, ps := range results {
		pages = append(pages, ps...)
	}
	return pages, nil
}
