package cmd

import (
	"fmt"
	"os"

	"github.com/easytier-tools/easytier-installer/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	installDir string
	mirror     string
	noService  bool
	Cfg        *config.Config
	Version    string
)

var RootCmd = &cobra.Command{
	Use:   "easytier-installer",
	Short: "Install and manage EasyTier releases on Linux hosts",
	Long: `easytier-installer resolves an EasyTier release, downloads the
platform archive with retry and mirror fallback, converges the install
directory, and registers the easytier systemd service.`,
	SilenceUsage: true,
}

func Execute(version string) error {
	Version = version
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, /etc/easytier-installer/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&installDir, "install-dir", "", "install directory (overrides config file)")
	RootCmd.PersistentFlags().StringVar(&mirror, "mirror", "", "mirror/proxy prefix for download URLs (overrides config file)")
	RootCmd.PersistentFlags().BoolVar(&noService, "no-service", false, "skip systemd service registration")
}

func initConfig() {
	var err error

	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Fatal: Configuration could not be loaded: %v\n", err)
		os.Exit(1)
	}

	// Command line flags win over config file and environment.
	if installDir != "" {
		Cfg.Install.Dir = installDir
	}
	if mirror != "" {
		Cfg.Release.MirrorPrefix = mirror
	}
	if noService {
		Cfg.Service.Enabled = false
	}
}
