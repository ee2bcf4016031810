// Package installer converges the install directory to the contents of a
// downloaded release archive: backup, extract, relocate, permission.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/easytier-tools/easytier-installer/internal/fsutil"
	"github.com/easytier-tools/easytier-installer/internal/release"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
)

// Installer places extracted release contents into the target directory.
// The previous generation of managed files is moved aside before anything
// is overwritten, so a failed run never destroys the last-known-good
// install.
type Installer struct {
	targetDir string
	runID     string
	logger    *logger.Logger
}

// New creates an installer for the given target directory. runID
// namespaces the staging directory so an interrupted run cannot collide
// with a later one.
func New(targetDir, runID string) *Installer {
	return &Installer{
		targetDir: targetDir,
		runID:     runID,
		logger:    logger.NewLogger("installer"),
	}
}

// Install runs the state machine: Backup -> Extract -> Relocate ->
// Permission -> Cleanup. The archive and staging directory never persist
// past a successful install.
func (i *Installer) Install(archivePath string, asset release.Asset) error {
	if err := os.MkdirAll(i.targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create install directory: %w", err)
	}

	if err := i.backup(filepath.Base(archivePath)); err != nil {
		return err
	}

	staging := filepath.Join(i.targetDir, ".staging-"+i.runID)
	defer os.RemoveAll(staging)

	if err := extractZip(archivePath, staging); err != nil {
		return err
	}

	extracted := filepath.Join(staging, asset.ExtractDir)
	if info, err := os.Stat(extracted); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: archive is missing expected directory %s", errdefs.ErrExtractionFailed, asset.ExtractDir)
	}

	if err := fsutil.MoveContents(i.logger, extracted, i.targetDir); err != nil {
		return fmt.Errorf("failed to relocate extracted files: %w", err)
	}

	if err := os.RemoveAll(staging); err != nil {
		i.logger.Warnf("Failed to remove staging directory %s: %v", staging, err)
	}
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		i.logger.Warnf("Failed to remove archive %s: %v", archivePath, err)
	}

	if err := i.markExecutable(); err != nil {
		return err
	}

	i.logger.WithFields(logger.Fields{
		"version": asset.Version.String(),
		"dir":     i.targetDir,
	}).Info("Install completed")
	return nil
}

// backup moves existing managed files into the backup subdirectory,
// replacing any previous backup. Single generation only. The downloaded
// archive sits in the target directory under the managed prefix, so it
// is excluded by name; the sweep must not move it before extraction.
func (i *Installer) backup(archiveName string) error {
	entries, err := os.ReadDir(i.targetDir)
	if err != nil {
		return fmt.Errorf("failed to read install directory: %w", err)
	}

	var managed []string
	for _, entry := range entries {
		name := entry.Name()
		if name == models.BackupDirName || name == archiveName || strings.HasPrefix(name, ".staging-") {
			continue
		}
		if strings.HasPrefix(name, models.ManagedPrefix) {
			managed = append(managed, name)
		}
	}

	if len(managed) == 0 {
		return nil
	}

	backupDir := filepath.Join(i.targetDir, models.BackupDirName)
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("failed to clear previous backup: %w", err)
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, name := range managed {
		src := filepath.Join(i.targetDir, name)
		dst := filepath.Join(backupDir, name)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to back up %s: %w", name, err)
		}
	}

	i.logger.WithFields(logger.Fields{
		"files":  len(managed),
		"backup": backupDir,
	}).Info("Backed up previous install")
	return nil
}

// markExecutable sets run permission on the shipped binaries.
func (i *Installer) markExecutable() error {
	for _, name := range []string{models.CoreBinary, models.CliBinary} {
		path := filepath.Join(i.targetDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Chmod(path, 0755); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", name, err)
		}
	}
	return nil
}

// Uninstall removes all managed files, the backup directory, and any
// leftover staging directories.
func (i *Installer) Uninstall() error {
	entries, err := os.ReadDir(i.targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read install directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if name != models.BackupDirName &&
			!strings.HasPrefix(name, models.ManagedPrefix) &&
			!strings.HasPrefix(name, ".staging-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.targetDir, name)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		i.logger.Debugf("Removed %s", name)
	}

	i.logger.WithFields(logger.Fields{"dir": i.targetDir}).Info("Uninstall completed")
	return nil
}
