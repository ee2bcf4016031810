// Package fsutil holds the filesystem plumbing shared by the fetcher and
// the installer: context-aware copying and cross-device moves.
package fsutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/easytier-tools/easytier-installer/pkg/logger"
)

// CopyWithContext copies data from src to dst with cancellation support
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		// Check for cancellation before each read
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}

// MoveFile moves a file from src to dst, handling cross-device links
func MoveFile(log *logger.Logger, src, dst string) error {
	// Fast path
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	log.Debugf("Rename %s -> %s failed, falling back to copy+delete", src, dst)

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy file: %w", err)
	}

	if err := dstFile.Sync(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := os.Remove(src); err != nil {
		log.Warnf("Failed to remove source file %s: %v", src, err)
		// File was copied successfully, not an error
	}

	return nil
}

// MoveContents moves every entry of srcDir into dstDir, file by file so
// cross-device moves work. Directories are moved recursively.
func MoveContents(log *logger.Logger, srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", srcDir, err)
	}

	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())

		if entry.IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dst, err)
			}
			if err := MoveContents(log, src, dst); err != nil {
				return err
			}
			if err := os.Remove(src); err != nil {
				log.Warnf("Failed to remove directory %s: %v", src, err)
			}
			continue
		}

		if err := MoveFile(log, src, dst); err != nil {
			return err
		}
	}

	return nil
}
