package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dhamidi/wikidump/ui"
	"github.com/dhamidi/wikidump/wikitext"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	var storePath string
	var useScylla bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages from a store over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx, storePath, useScylla)
			if err != nil {
				return err
			}
			defer s.Close()

			server := &http.Server{
				Addr:    addr,
				Handler: ui.NewServer(s, wikitext.NewMarkup()),
			}
			go func() {
				<-ctx.Done()
				server.Close()
			}()

			displayAddr := addr
			if strings.HasPrefix(addr, ":") {
				displayAddr = "localhost" + addr
			}
			fmt.Printf("Starting server at http://%s\n", displayAddr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "address to listen on")
	cmd.Flags().StringVarP(&storePath, "store", "s", "", "store file written by pack")
	cmd.Flags().BoolVar(&useScylla, "scylla", false, "serve from Scylla (SCYLLA_HOSTS, SCYLLA_KEYSPACE)")

	return cmd
}
