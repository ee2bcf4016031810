// Package service registers the managed binary as a systemd service:
// descriptor resolution, unit-file generation, and lifecycle control.
package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	"gopkg.in/yaml.v3"
)

// Descriptor declares how the service manager should supervise the
// installed binary. It is either fetched remotely or synthesized from the
// built-in defaults.
type Descriptor struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	ExecStart        string `yaml:"exec_start"`
	WorkingDirectory string `yaml:"working_directory"`
	User             string `yaml:"user"`
	Restart          string `yaml:"restart"`
	RestartSec       int    `yaml:"restart_sec"`
}

// DefaultDescriptor synthesizes the built-in service definition for an
// install directory.
func DefaultDescriptor(installDir, name string) Descriptor {
	return Descriptor{
		Name:             name,
		Description:      "EasyTier virtual networking service",
		ExecStart:        filepath.Join(installDir, models.CoreBinary) + " -c " + filepath.Join(installDir, "config.toml"),
		WorkingDirectory: installDir,
		User:             "root",
		Restart:          "on-failure",
		RestartSec:       10,
	}
}

// ResolveDescriptor fetches the remote unit descriptor when a URL is
// configured. Any fetch or parse failure degrades to the synthesized
// default with a warning; service registration is best-effort and never
// aborts the run at this stage.
func ResolveDescriptor(ctx context.Context, url string, fallback Descriptor) Descriptor {
	log := logger.NewLogger("service")

	if url == "" {
		return fallback
	}

	desc, err := fetchDescriptor(ctx, url)
	if err != nil {
		log.Warnf("Failed to fetch service descriptor from %s, using built-in template: %v", url, err)
		return fallback
	}

	// A sparse remote descriptor inherits the missing fields.
	if desc.Name == "" {
		desc.Name = fallback.Name
	}
	if desc.Description == "" {
		desc.Description = fallback.Description
	}
	if desc.ExecStart == "" {
		desc.ExecStart = fallback.ExecStart
	}
	if desc.WorkingDirectory == "" {
		desc.WorkingDirectory = fallback.WorkingDirectory
	}
	if desc.User == "" {
		desc.User = fallback.User
	}
	if desc.Restart == "" {
		desc.Restart = fallback.Restart
	}
	if desc.RestartSec == 0 {
		desc.RestartSec = fallback.RestartSec
	}

	log.WithFields(logger.Fields{"url": url, "service": desc.Name}).Info("Using remote service descriptor")
	return desc
}

func fetchDescriptor(ctx context.Context, url string) (Descriptor, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Descriptor{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Descriptor{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read response: %w", err)
	}

	var desc Descriptor
	if err := yaml.Unmarshal(body, &desc); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	return desc, nil
}
