package cmd

import (
	"context"
	"path/filepath"

	"github.com/easytier-tools/easytier-installer/internal/cmdrunner"
	"github.com/easytier-tools/easytier-installer/internal/fetcher"
	"github.com/easytier-tools/easytier-installer/internal/installer"
	"github.com/easytier-tools/easytier-installer/internal/preflight"
	"github.com/easytier-tools/easytier-installer/internal/release"
	"github.com/easytier-tools/easytier-installer/internal/service"
	"github.com/easytier-tools/easytier-installer/internal/status"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install [version] [platform]",
	Short: "Download and install an EasyTier release",
	Long: `Resolve the target release (explicit version, release index, mirror,
or built-in default), download the platform archive, back up the previous
install, and converge the install directory and systemd service.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var explicitVersion, explicitPlatform string
		if len(args) > 0 {
			explicitVersion = args[0]
		}
		if len(args) > 1 {
			explicitPlatform = args[1]
		}
		return runInstall(cmd.Context(), explicitVersion, explicitPlatform)
	},
}

func init() {
	RootCmd.AddCommand(installCmd)
}

func runInstall(ctx context.Context, explicitVersion, explicitPlatform string) error {
	runID := uuid.New().String()
	log := logger.NewLogger("install")
	log.WithFields(logger.Fields{"run_id": runID}).Info("Starting install")

	if err := preflight.Check(preflight.Options{
		InstallDir:     Cfg.Install.Dir,
		RequireService: Cfg.Service.Enabled,
		RequireRoot:    true,
	}); err != nil {
		return err
	}

	// Platform resolution is local and cheap; do it before touching the
	// network so an unsupported host aborts without any remote calls.
	platform, err := release.ResolvePlatform(explicitPlatform)
	if err != nil {
		return err
	}

	version, err := release.NewResolver(Cfg.Release).Resolve(ctx, explicitVersion)
	if err != nil {
		return err
	}

	asset := release.BuildAsset(version, platform, Cfg.Release)
	log.WithFields(logger.Fields{
		"version":  version.String(),
		"platform": string(platform),
		"archive":  asset.ArchiveName,
	}).Info("Resolved release")

	archivePath := filepath.Join(Cfg.Install.Dir, asset.ArchiveName)
	if err := fetcher.NewFetcher(Cfg.Fetch).Fetch(ctx, asset.DownloadURL, archivePath); err != nil {
		return err
	}

	if err := installer.New(Cfg.Install.Dir, runID).Install(archivePath, asset); err != nil {
		return err
	}

	if Cfg.Service.Enabled {
		desc := service.ResolveDescriptor(ctx, Cfg.Service.DescriptorURL,
			service.DefaultDescriptor(Cfg.Install.Dir, Cfg.Service.Name))
		mgr := service.NewManager(Cfg.Service.Name, models.SystemdPath)
		if err := mgr.Install(ctx, desc); err != nil {
			// The binary install is already committed; service
			// registration failure is reported, not fatal.
			log.WithError(err).Error("Service registration failed, binary install is unaffected")
		}
	}

	status.NewReporter(Cfg.Install.Dir, Cfg.Service.Name, cmdrunner.NewCommandsRunner()).Report(ctx)
	return nil
}
