package cmd

import (
	"github.com/easytier-tools/easytier-installer/internal/cmdrunner"
	"github.com/easytier-tools/easytier-installer/internal/status"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed files and service state",
	Run: func(cmd *cobra.Command, args []string) {
		status.NewReporter(Cfg.Install.Dir, Cfg.Service.Name, cmdrunner.NewCommandsRunner()).Report(cmd.Context())
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
