package config

import (
	"time"

	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Install InstallConfig `mapstructure:"install"`
	Release ReleaseConfig `mapstructure:"release"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Service ServiceConfig `mapstructure:"service"`
	Logging logger.Config `mapstructure:"logging"`
}

// InstallConfig holds filesystem targets
type InstallConfig struct {
	Dir string `mapstructure:"dir"`
}

// ReleaseConfig holds version resolution endpoints
type ReleaseConfig struct {
	// IndexURL is the primary release index (GitHub latest-release API).
	IndexURL string `mapstructure:"index_url"`
	// MirrorPageURL is the secondary HTML release page scraped when the
	// primary index is unusable.
	MirrorPageURL string `mapstructure:"mirror_page_url"`
	// DownloadBase is the asset host.
	DownloadBase string `mapstructure:"download_base"`
	// MirrorPrefix, when set, is prepended to the download URL to route
	// through a mirror/proxy host.
	MirrorPrefix string `mapstructure:"mirror_prefix"`
	// DefaultVersion is the last-resort version when both endpoints fail.
	DefaultVersion string `mapstructure:"default_version"`
	// Timeout bounds each index request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// FetchConfig holds download retry behavior
type FetchConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ServiceConfig holds systemd registration behavior
type ServiceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	// DescriptorURL points at a remote unit descriptor (YAML). When the
	// fetch fails the built-in template is used instead.
	DescriptorURL string `mapstructure:"descriptor_url"`
}

// LoadConfig loads configuration from file, environment, and defaults
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/easytier-installer")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("EASYTIER")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := logger.Init(config.Logging); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("install.dir", models.DefaultInstallDir)

	v.SetDefault("release.index_url", "https://api.github.com/repos/EasyTier/EasyTier/releases/latest")
	v.SetDefault("release.mirror_page_url", "https://github.com/EasyTier/EasyTier/releases")
	v.SetDefault("release.download_base", "https://github.com/EasyTier/EasyTier/releases/download")
	v.SetDefault("release.mirror_prefix", "")
	v.SetDefault("release.default_version", "2.3.2")
	v.SetDefault("release.timeout", "30s")

	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff", "3s")
	v.SetDefault("fetch.timeout", "300s")

	v.SetDefault("service.enabled", true)
	v.SetDefault("service.name", models.ServiceName)
	v.SetDefault("service.descriptor_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", models.DefaultLogFile)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
}

// DefaultConfig returns the built-in configuration without touching the
// filesystem or environment. Used by tests and as a fallback.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// Defaults are static; this cannot fail at runtime.
		panic(err)
	}
	return &config
}
