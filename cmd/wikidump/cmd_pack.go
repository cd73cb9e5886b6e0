package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newPackCmd() *cobra.Command {
	var windows int
	var skipRedirects bool

	cmd := &cobra.Command{
		Use:   "pack <dump.xml> <out.wds>",
		Short: "Build a lookup store from a dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd.Context(), args[0], args[1], windows, skipRedirects)
		},
	}

	cmd.Flags().IntVarP(&windows, "windows", "n", runtime.NumCPU(), "number of concurrent windows")
	cmd.Flags().BoolVar(&skipRedirects, "skip-redirects", false, "leave redirect pages out of the store")

	return cmd
}

func runPack(ctx context.Context, dumpPath, outPath string, windows int, skipRedirects bool) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer out.Close()

	b := store.NewBuilder(out)
	type orderedPage struct {
		order uint64
		page  *dump.Page
	}
	pages := make(chan orderedPage, 64)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pages)
		return eachPage(ctx, dumpPath, windows, func(ctx context.Context, order uint64, p *dump.Page) error {
			if skipRedirects && p.Redirect {
				return nil
			}
			select {
			case pages <- orderedPage{order, p}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	added := 0
	g.Go(func() error {
		for p := range pages {
			if err := b.AddOrdered(p.page, p.order); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("pack %s: %w", dumpPath, err)
	}

	if err := b.Close(); err != nil {
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	fmt.Printf("Packed %d pages into %s\n", added, outPath)
	return nil
}
