// Package fetcher downloads release assets with bounded retries and a
// fixed backoff between attempts.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/easytier-tools/easytier-installer/internal/config"
	"github.com/easytier-tools/easytier-installer/internal/fsutil"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"golang.org/x/time/rate"
)

// Fetcher retrieves a release asset over HTTP. Non-2xx responses, network
// errors, and zero-byte results all count as failed attempts.
type Fetcher struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logger.Logger
}

// NewFetcher creates a fetcher with the configured retry behavior.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     logger.NewLogger("fetcher"),
	}
}

// Fetch downloads url to dest. Any stale partial file at dest is removed
// before the first attempt. After the initial attempt, up to maxRetries
// retries are made with a constant backoff between them; exhaustion is
// fatal and reported as ErrFetchExhausted. No partial file is left behind
// on failure.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := os.Remove(dest); err == nil {
		f.logger.Warnf("Removed stale partial download at %s", dest)
	}

	f.logger.WithFields(logger.Fields{
		"url":  url,
		"dest": dest,
	}).Info("Starting download")

	attempts := 0
	operation := func() error {
		attempts++
		if err := f.attempt(ctx, url, dest); err != nil {
			f.logger.Warnf("Download attempt %d failed: %v", attempts, err)
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.backoff), uint64(f.maxRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", errdefs.ErrFetchExhausted, url, attempts, err)
	}

	f.logger.WithFields(logger.Fields{"dest": dest, "attempts": attempts}).Info("Download completed")
	return nil
}

// attempt performs one blocking GET, streaming the body to dest.
func (f *Fetcher) attempt(ctx context.Context, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create %s: %w", dest, err))
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dest)
		}
	}()

	reader := &progressReader{
		reader:  resp.Body,
		total:   resp.ContentLength,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  f.logger,
	}

	written, err := fsutil.CopyWithContext(ctx, out, reader)
	if err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("server returned empty body")
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to sync download: %w", err)
	}

	return nil
}

// progressReader logs download progress, throttled so large transfers do
// not flood the log.
type progressReader struct {
	reader  io.Reader
	total   int64
	read    int64
	limiter *rate.Limiter
	logger  *logger.Logger
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	p.read += int64(n)

	if n > 0 && p.limiter.Allow() {
		if p.total > 0 {
			p.logger.Debugf("Downloaded %s of %s (%.0f%%)",
				formatBytes(p.read), formatBytes(p.total), float64(p.read)/float64(p.total)*100)
		} else {
			p.logger.Debugf("Downloaded %s", formatBytes(p.read))
		}
	}

	return n, err
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
