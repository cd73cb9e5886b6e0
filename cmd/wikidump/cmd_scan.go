package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/dump/parser"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newScanCmd() *cobra.Command {
	var timeout time.Duration
	var windows int

	cmd := &cobra.Command{
		Use:   "scan <dump.xml>",
		Short: "Read a dump in concurrent windows and report statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), args[0], windows, timeout)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Minute, "timeout per window")
	cmd.Flags().IntVarP(&windows, "windows", "n", runtime.NumCPU(), "number of windows")

	return cmd
}

type scanStats struct {
	pages      int
	revisions  int
	redirects  int
	incomplete int
	noText     int
	fieldErrs  int
}

func (s *scanStats) add(p *dump.Page) {
	s.pages++
	if p.Redirect {
		s.redirects++
	}
	if !p.Complete() {
		s.incomplete++
	}
	for _, r := range p.Revisions {
		s.revisions++
		s.fieldErrs += len(r.Errs)
		if r.Text == nil {
			s.noText++
		}
	}
}

func (s *scanStats) merge(o scanStats) {
	s.pages += o.pages
	s.revisions += o.revisions
	s.redirects += o.redirects
	s.incomplete += o.incomplete
	s.noText += o.noText
	s.fieldErrs += o.fieldErrs
}

func runScan(ctx context.Context, path string, windows int, timeout time.Duration) error {
	f, size, err := openDump(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		mu     sync.Mutex
		total  scanStats
		errors []string
	)

	plan := parser.SplitN(size, windows)
	fmt.Printf("Scanning %d bytes in %d windows\n", size, len(plan))

	var g errgroup.Group
	for i, w := range plan {
		g.Go(func() error {
			stats, err := scanWindow(ctx, f, w, timeout)
			mu.Lock()
			defer mu.Unlock()
			total.merge(stats)
			if err != nil {
				errors = append(errors, fmt.Sprintf("window %s: %v", w, err))
				fmt.Printf("[%d/%d] [ERROR] %s\n", i+1, len(plan), w)
				return nil
			}
			fmt.Printf("[%d/%d] [OK] %s (%d pages)\n", i+1, len(plan), w, stats.pages)
			return nil
		})
	}
	g.Wait()

	fmt.Printf("\n=== SCAN COMPLETE ===\n")
	fmt.Printf("Pages: %d (%d redirects, %d incomplete)\n", total.pages, total.redirects, total.incomplete)
	fmt.Printf("Revisions: %d (%d without text, %d field errors)\n", total.revisions, total.noText, total.fieldErrs)
	fmt.Printf("Errors: %d\n", len(errors))
	for _, e := range errors {
		fmt.Printf("  - %s\n", e)
	}
	return nil
}

// scanWindow reads one window until it is done or timeout has passed. The
// statistics of the pages read so far are returned in both cases.
func scanWindow(ctx context.Context, ra io.ReaderAt, w parser.Window, timeout time.Duration) (scanStats, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stats scanStats
	r := parser.NewSectionReader(ra, w.Start, w.Length, parser.WithName("window "+w.String()))
	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("stopped at %.0f%%: %w", 100*min(r.Progress(), 1), err)
		}
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.add(p)
	}
}
