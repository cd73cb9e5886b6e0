package main

import (
	"fmt"
	"path/filepath"

	"github.com/dhamidi/wikidump/fetch"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var dir string
	var checkNew bool

	cmd := &cobra.Command{
		Use:   "fetch [lang]",
		Short: "Download the latest article dump unless a current one is present",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := "en"
			if len(args) == 1 {
				lang = args[0]
			}
			f := fetch.NewFetcher()
			path, err := f.Ensure(cmd.Context(), lang, filepath.Join(dir, lang), checkNew)
			if err != nil {
				return fmt.Errorf("fetch %s dump: %w", lang, err)
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "dumps", "directory holding one subdirectory per language")
	cmd.Flags().BoolVar(&checkNew, "check", true, "ask the mirror for a newer dump even if one is present")

	return cmd
}
