package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCreatesInstallDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "install")

	err := Check(Options{InstallDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCheckPrivilege(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, privilege check cannot fail")
	}

	err := Check(Options{RequireRoot: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrPrivilege)
}

func TestCheckUnusableInstallDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks cannot fail")
	}

	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0500))
	defer os.Chmod(parent, 0755)

	err := Check(Options{InstallDir: filepath.Join(parent, "install")})
	assert.Error(t, err)
}
