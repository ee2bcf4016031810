package cmd

import (
	"github.com/easytier-tools/easytier-installer/internal/installer"
	"github.com/easytier-tools/easytier-installer/internal/preflight"
	"github.com/easytier-tools/easytier-installer/internal/service"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop the service and remove installed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger("uninstall")

		if err := preflight.Check(preflight.Options{
			RequireService: Cfg.Service.Enabled,
			RequireRoot:    true,
		}); err != nil {
			return err
		}

		if Cfg.Service.Enabled {
			mgr := service.NewManager(Cfg.Service.Name, models.SystemdPath)
			if err := mgr.Remove(cmd.Context()); err != nil {
				log.WithError(err).Warn("Service removal failed, continuing with file removal")
			}
		}

		return installer.New(Cfg.Install.Dir, uuid.New().String()).Uninstall()
	},
}

func init() {
	RootCmd.AddCommand(uninstallCmd)
}
