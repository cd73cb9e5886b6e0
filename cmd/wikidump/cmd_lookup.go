package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/format"
	"github.com/dhamidi/wikidump/store"
	"github.com/dhamidi/wikidump/wikitext"
	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	var storePath string
	var useScylla bool
	var outputFormat string
	var render string
	var revisionID int64
	var lang string

	cmd := &cobra.Command{
		Use:   "lookup <title>",
		Short: "Look up a page by title in a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]
			ctx := cmd.Context()

			s, err := openStore(ctx, storePath, useScylla)
			if err != nil {
				return err
			}
			defer s.Close()

			page, err := s.Get(ctx, title)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no page titled %q", title)
			}
			if err != nil {
				return fmt.Errorf("lookup: %w", err)
			}

			if render == "" {
				enc := format.New(outputFormat, os.Stdout)
				if enc == nil {
					return fmt.Errorf("unknown format: %s (expected json or line)", outputFormat)
				}
				return enc.Encode(page)
			}

			mode, err := wikitext.ParseMode(render)
			if err != nil {
				return err
			}
			rev, err := page.FindRevision(revisionID)
			if err != nil {
				return err
			}
			conv := wikitext.NewMarkup(wikitext.WithLinkPrefix(fmt.Sprintf("https://%s.wikipedia.org/wiki/", lang)))
			text, err := wikitext.Render(conv, rev, page.Title, mode)
			if err != nil {
				return err
			}
			fmt.Println(text)
			log.Debugf("rendered %s revision %d", page.URL(lang), rev.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "store file written by pack")
	cmd.Flags().BoolVar(&useScylla, "scylla", false, "look up in Scylla (SCYLLA_HOSTS, SCYLLA_KEYSPACE)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "line", "output format (json, line)")
	cmd.Flags().StringVarP(&render, "render", "r", "", "render the revision text (plain, html)")
	cmd.Flags().Int64Var(&revisionID, "revision", dump.NoID, "revision to render (default: the last one)")
	cmd.Flags().StringVar(&lang, "lang", "en", "wikipedia language, for links")

	return cmd
}

func openStore(ctx context.Context, path string, useScylla bool) (store.Store, error) {
	switch {
	case useScylla && path != "":
		return nil, fmt.Errorf("--store and --scylla are exclusive")
	case useScylla:
		cfg, err := store.ScyllaConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return store.NewScylla(ctx, cfg)
	case path != "":
		return store.Open(path)
	}
	return nil, fmt.Errorf("one of --store or --scylla is required")
}
