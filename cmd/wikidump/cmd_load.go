package main

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/store"
	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	var windows int
	var skipRedirects bool

	cmd := &cobra.Command{
		Use:   "load <dump.xml>",
		Short: "Store the pages of a dump in Scylla (SCYLLA_HOSTS, SCYLLA_KEYSPACE)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := store.ScyllaConfigFromEnv()
			if err != nil {
				return err
			}
			s, err := store.NewScylla(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			var loaded atomic.Int64
			err = eachPage(ctx, args[0], windows, func(ctx context.Context, _ uint64, p *dump.Page) error {
				if skipRedirects && p.Redirect {
					return nil
				}
				if err := s.Put(ctx, p); err != nil {
					return err
				}
				if n := loaded.Add(1); n%10000 == 0 {
					log.Infof("loaded %d pages", n)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			fmt.Printf("Loaded %d pages into keyspace %s\n", loaded.Load(), cfg.Keyspace)
			return nil
		},
	}

	cmd.Flags().IntVarP(&windows, "windows", "n", runtime.NumCPU(), "number of concurrent windows")
	cmd.Flags().BoolVar(&skipRedirects, "skip-redirects", false, "leave redirect pages out")

	return cmd
}
