package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/easytier-tools/easytier-installer/internal/config"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2.3.0", "2.3.0"},
		{"v2.3.0", "2.3.0"},
		{"V2.3.0", "2.3.0"},
		{"  v10.20.30 ", "10.20.30"},
		{"0.0.1", "0.0.1"},
	}

	for _, tt := range tests {
		v, err := ParseVersion(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, v.String(), "input %q", tt.input)
	}
}

func TestParseVersionRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"latest",
		"2.3",
		"2.3.0.1",
		"v2.3.0-rc.1",
		"2.3.x",
		"vv2.3.0",
		"2..3.0",
	}

	for _, input := range inputs {
		_, err := ParseVersion(input)
		require.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, errdefs.ErrInvalidVersionFormat, "input %q", input)
	}
}

func testReleaseConfig(indexURL, mirrorURL string) config.ReleaseConfig {
	return config.ReleaseConfig{
		IndexURL:       indexURL,
		MirrorPageURL:  mirrorURL,
		DefaultVersion: "2.3.2",
		Timeout:        5 * time.Second,
	}
}

func TestResolveExplicitSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	r := NewResolver(testReleaseConfig(srv.URL, srv.URL))

	v, err := r.Resolve(context.Background(), "v2.3.0")
	require.NoError(t, err)
	assert.Equal(t, "2.3.0", v.String())
	assert.False(t, called, "explicit version must not hit the network")

	_, err = r.Resolve(context.Background(), "not-a-version")
	assert.ErrorIs(t, err, errdefs.ErrInvalidVersionFormat)
	assert.False(t, called)
}

func TestResolveFromPrimaryIndex(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v2.5.0"}`))
	}))
	defer primary.Close()

	mirrorCalled := false
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mirrorCalled = true
	}))
	defer mirror.Close()

	r := NewResolver(testReleaseConfig(primary.URL, mirror.URL))

	v, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2.5.0", v.String())
	assert.False(t, mirrorCalled, "mirror must not be queried when the primary index works")
}

func TestResolveFallsBackToMirror(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not valid json`))
	}))
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><a href="/EasyTier/EasyTier/releases/tag/v2.4.1">v2.4.1</a></html>`))
	}))
	defer mirror.Close()

	r := NewResolver(testReleaseConfig(primary.URL, mirror.URL))

	v, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2.4.1", v.String())
}

func TestResolveDegradesToDefault(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	r := NewResolver(testReleaseConfig(broken.URL, broken.URL))

	v, err := r.Resolve(context.Background(), "")
	require.NoError(t, err, "endpoint exhaustion degrades to the default, not an error")
	assert.Equal(t, "2.3.2", v.String())
}

func TestResolveDegradesWhenMirrorHasNoTag(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>no releases yet</html>`))
	}))
	defer mirror.Close()

	r := NewResolver(testReleaseConfig(primary.URL, mirror.URL))

	v, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2.3.2", v.String())
}

func TestResolveFailsWhenDefaultInvalid(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	cfg := testReleaseConfig(broken.URL, broken.URL)
	cfg.DefaultVersion = "oops"
	r := NewResolver(cfg)

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, errdefs.ErrVersionResolution)
}
