package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/dump/parser"
	"golang.org/x/sync/errgroup"
)

// openDump opens a dump file for windowed reading.
func openDump(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dump: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat dump: %w", err)
	}
	return f, info.Size(), nil
}

// fileOrder is the position of a page in the dump: the window index in the
// high bits, the page's index within the window in the low bits.
func fileOrder(window, seq int) uint64 {
	return uint64(window)<<32 | uint64(seq)
}

// eachPage reads the dump at path in n concurrent windows and calls fn for
// every page with its fileOrder. fn is called from several goroutines at
// once.
func eachPage(ctx context.Context, path string, n int, fn func(ctx context.Context, order uint64, p *dump.Page) error) error {
	f, size, err := openDump(path)
	if err != nil {
		return err
	}
	defer f.Close()

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range parser.SplitN(size, n) {
		g.Go(func() error {
			r := parser.NewSectionReader(f, w.Start, w.Length, parser.WithName(fmt.Sprintf("%s %s", path, w)))
			for seq := 0; ; seq++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := r.Next()
				if errors.Is(err, io.EOF) {
					log.Debugf("window %s done", w)
					return nil
				}
				if err != nil {
					return err
				}
				if err := fn(ctx, fileOrder(i, seq), p); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
