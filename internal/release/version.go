package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/easytier-tools/easytier-installer/internal/config"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/sony/gobreaker"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// tagPattern extracts a version tag out of the mirror release page, which
// serves HTML rather than JSON.
var tagPattern = regexp.MustCompile(`v(\d+\.\d+\.\d+)`)

// Version is an immutable semantic version triple. It is produced once per
// run and threaded through the pipeline as a value.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion normalizes and validates a version string. A single leading
// "v" or "V" is stripped; anything not matching the numeric triple is
// rejected, never coerced.
func ParseVersion(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}

	m := versionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", errdefs.ErrInvalidVersionFormat, s)
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// indexResponse is the subset of the GitHub latest-release payload we need.
type indexResponse struct {
	TagName string `json:"tag_name"`
}

// Resolver determines the target release version from an explicit request,
// the primary release index, the mirror page, or the configured default,
// in that order.
type Resolver struct {
	cfg        config.ReleaseConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
}

// NewResolver creates a resolver for the configured endpoints.
func NewResolver(cfg config.ReleaseConfig) *Resolver {
	log := logger.NewLogger("release-resolver")

	settings := gobreaker.Settings{
		Name:    "release-index",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed from %v to %v", name, from, to)
		},
	}

	return &Resolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     log,
	}
}

// Resolve returns the target release version. An explicit version is
// validated and used as-is. Otherwise the primary index is queried, then
// the mirror page, and finally the configured default with a warning.
// Every path funnels through ParseVersion.
func (r *Resolver) Resolve(ctx context.Context, explicit string) (Version, error) {
	if explicit != "" {
		return ParseVersion(explicit)
	}

	if tag, err := r.latestFromIndex(ctx); err == nil {
		if v, perr := ParseVersion(tag); perr == nil {
			r.logger.WithFields(logger.Fields{"version": v.String(), "source": "index"}).Info("Resolved latest version")
			return v, nil
		} else {
			r.logger.Warnf("Primary index returned malformed tag %q", tag)
		}
	} else {
		r.logger.WithError(err).Warn("Primary release index unavailable")
	}

	if tag, err := r.latestFromMirror(ctx); err == nil {
		if v, perr := ParseVersion(tag); perr == nil {
			r.logger.WithFields(logger.Fields{"version": v.String(), "source": "mirror"}).Info("Resolved latest version")
			return v, nil
		} else {
			r.logger.Warnf("Mirror page returned malformed tag %q", tag)
		}
	} else {
		r.logger.WithError(err).Warn("Mirror release page unavailable")
	}

	// Degrade to the known-good default rather than failing the run.
	v, err := ParseVersion(r.cfg.DefaultVersion)
	if err != nil {
		return Version{}, fmt.Errorf("%w: default version %q is invalid", errdefs.ErrVersionResolution, r.cfg.DefaultVersion)
	}
	r.logger.Warnf("Both release endpoints failed, falling back to default version %s", v)
	return v, nil
}

// latestFromIndex queries the primary release index and extracts the
// latest tag field.
func (r *Resolver) latestFromIndex(ctx context.Context) (string, error) {
	body, err := r.get(ctx, r.cfg.IndexURL)
	if err != nil {
		return "", err
	}

	var idx indexResponse
	if err := json.Unmarshal(body, &idx); err != nil {
		return "", fmt.Errorf("failed to decode release index: %w", err)
	}
	if idx.TagName == "" {
		return "", fmt.Errorf("release index has no tag field")
	}
	return idx.TagName, nil
}

// latestFromMirror scrapes the first version tag out of the mirror
// release page.
func (r *Resolver) latestFromMirror(ctx context.Context) (string, error) {
	body, err := r.get(ctx, r.cfg.MirrorPageURL)
	if err != nil {
		return "", err
	}

	m := tagPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no version tag found in mirror page")
	}
	return string(m[1]), nil
}

// get performs a single index request through the circuit breaker.
func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("endpoint %s returned status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
