package main

import (
	"github.com/spf13/cobra"
)

var debug bool

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recipecache",
		Short:         "Dessert recipe service with a deduplicating image cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCommand())

	return cmd
}
