package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
)

// Manager drives the systemd lifecycle for the managed service over the
// dbus API. All failures wrap ErrServiceInstall; the caller reports them
// without rolling back the binary install.
type Manager struct {
	name    string
	unitDir string
	logger  *logger.Logger
}

// NewManager creates a manager for the named service with unit files
// under unitDir.
func NewManager(name, unitDir string) *Manager {
	return &Manager{
		name:    name,
		unitDir: unitDir,
		logger:  logger.NewLogger("service"),
	}
}

func (m *Manager) unitName() string {
	return m.name + ".service"
}

// Install writes the unit file and converges the service: daemon-reload,
// enable, restart.
func (m *Manager) Install(ctx context.Context, d Descriptor) error {
	path, err := WriteUnit(d, m.unitDir)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrServiceInstall, err)
	}
	m.logger.WithFields(logger.Fields{"unit": path}).Info("Wrote service unit")

	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot connect to systemd: %v", errdefs.ErrServiceInstall, err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("%w: daemon-reload failed: %v", errdefs.ErrServiceInstall, err)
	}

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{m.unitName()}, false, true); err != nil {
		return fmt.Errorf("%w: enable failed: %v", errdefs.ErrServiceInstall, err)
	}

	if err := m.restart(ctx, conn); err != nil {
		return err
	}

	m.logger.WithFields(logger.Fields{"service": m.unitName()}).Info("Service enabled and started")
	return nil
}

func (m *Manager) restart(ctx context.Context, conn *dbus.Conn) error {
	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, m.unitName(), "replace", done); err != nil {
		return fmt.Errorf("%w: restart failed: %v", errdefs.ErrServiceInstall, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%w: restart job finished with %q", errdefs.ErrServiceInstall, result)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errdefs.ErrServiceInstall, ctx.Err())
	}
	return nil
}

// Remove stops and disables the service, deletes the unit file, and
// reloads systemd. Used by uninstall.
func (m *Manager) Remove(ctx context.Context) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot connect to systemd: %v", errdefs.ErrServiceInstall, err)
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.StopUnitContext(ctx, m.unitName(), "replace", done); err != nil {
		m.logger.Warnf("Failed to stop %s: %v", m.unitName(), err)
	} else {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errdefs.ErrServiceInstall, ctx.Err())
		}
	}

	if _, err := conn.DisableUnitFilesContext(ctx, []string{m.unitName()}, false); err != nil {
		m.logger.Warnf("Failed to disable %s: %v", m.unitName(), err)
	}

	unitPath := filepath.Join(m.unitDir, m.unitName())
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: cannot remove unit file: %v", errdefs.ErrServiceInstall, err)
	}

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("%w: daemon-reload failed: %v", errdefs.ErrServiceInstall, err)
	}

	m.logger.WithFields(logger.Fields{"service": m.unitName()}).Info("Service removed")
	return nil
}
