package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
)

// extractZip unpacks archivePath into destDir. Entries that would escape
// destDir are rejected.
func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", errdefs.ErrExtractionFailed, archivePath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}

	cleanDest := filepath.Clean(destDir)
	for _, file := range reader.File {
		path := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(path, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry %q escapes extraction directory", errdefs.ErrExtractionFailed, file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", path, err)
			}
			continue
		}

		if err := extractFile(file, path); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot open entry %s: %v", errdefs.ErrExtractionFailed, file.Name, err)
	}
	defer src.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: failed to extract %s: %v", errdefs.ErrExtractionFailed, file.Name, err)
	}

	return nil
}
