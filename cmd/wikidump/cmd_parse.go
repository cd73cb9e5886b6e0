package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/dump/parser"
	"github.com/dhamidi/wikidump/format"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var outputFormat string
	var start, length int64
	var windows int
	var revisions bool

	cmd := &cobra.Command{
		Use:   "parse <dump.xml>",
		Short: "Parse a dump, or a byte window of it, and print the pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			out := bufio.NewWriter(os.Stdout)
			defer out.Flush()
			emit, err := newEmitter(outputFormat, out)
			if err != nil {
				return err
			}

			f, size, err := openDump(filename)
			if err != nil {
				return err
			}
			defer f.Close()

			if windows > 1 {
				if revisions || cmd.Flags().Changed("start") || cmd.Flags().Changed("length") {
					return fmt.Errorf("--windows cannot be combined with --start, --length or --revisions")
				}
				pages, err := parser.ReadAll(cmd.Context(), f, parser.SplitN(size, windows), windows, parser.WithName(filename))
				if err != nil {
					return fmt.Errorf("parse dump: %w", err)
				}
				for _, p := range pages {
					if err := emit.page(p); err != nil {
						return err
					}
				}
				return nil
			}

			if length < 0 {
				length = size - start
			}
			opts := []parser.Option{parser.WithName(filename)}
			if revisions {
				return parseRevisions(parser.NewRevisionSectionReader(f, start, length, opts...), emit)
			}
			return parsePages(cmd.Context(), parser.NewSectionReader(f, start, length, opts...), emit)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "line", "output format (json, line, binary)")
	cmd.Flags().Int64Var(&start, "start", 0, "byte offset of the window to parse")
	cmd.Flags().Int64Var(&length, "length", -1, "length of the window to parse (-1 for the rest of the file)")
	cmd.Flags().IntVarP(&windows, "windows", "n", 1, "parse the whole file in this many concurrent windows")
	cmd.Flags().BoolVar(&revisions, "revisions", false, "emit one record per revision")

	return cmd
}

// emitter writes pages or single revisions in the selected format.
type emitter struct {
	text   format.TextEncoder
	binary *format.Encoder
}

func newEmitter(name string, w io.Writer) (*emitter, error) {
	if name == "binary" {
		return &emitter{binary: format.NewEncoder(w)}, nil
	}
	enc := format.New(name, w)
	if enc == nil {
		return nil, fmt.Errorf("unknown format: %s (expected json, line, or binary)", name)
	}
	return &emitter{text: enc}, nil
}

func (e *emitter) page(p *dump.Page) error {
	if e.binary != nil {
		return e.binary.EncodePage(p)
	}
	if err := e.text.Encode(p); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return nil
}

func (e *emitter) revision(h dump.PageHeader, r *dump.Revision) error {
	if e.binary != nil {
		return e.binary.EncodeRevision(h, r)
	}
	p := &dump.Page{Title: h.Title, ID: h.ID, Redirect: h.Redirect, Revisions: []*dump.Revision{r}}
	if err := e.text.Encode(p); err != nil {
		return fmt.Errorf("encode revision: %w", err)
	}
	return nil
}

func parsePages(ctx context.Context, r *parser.Reader, emit *emitter) error {
	for p, err := range r.All() {
		if err != nil {
			return fmt.Errorf("parse dump: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit.page(p); err != nil {
			return err
		}
	}
	return nil
}

func parseRevisions(r *parser.RevisionReader, emit *emitter) error {
	for {
		h, rev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse dump: %w", err)
		}
		if err := emit.revision(h, rev); err != nil {
			return err
		}
	}
}
