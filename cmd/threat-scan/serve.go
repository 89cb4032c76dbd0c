package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/mikey/mail-threat-classifier/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the configured mail filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		container, err := di.BuildContainer(flags.ConfigFile)
		if err != nil {
			return err
		}
		return dig.RootCause(container.Invoke(func(d di.Daemon) error {
			defer d.Logger.Sync()
			return d.Run(cmd.Context())
		}))
	},
}
