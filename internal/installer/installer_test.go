package installer

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/easytier-tools/easytier-installer/internal/release"
	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeArchive builds a release-shaped zip: a single top-level directory
// containing the given files.
func makeArchive(t *testing.T, dir, topDir string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, topDir+".zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	for name, content := range files {
		f, err := w.Create(topDir + "/" + name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return path
}

func testAsset(version string) release.Asset {
	v, _ := release.ParseVersion(version)
	return release.Asset{
		Version:    v,
		Platform:   release.PlatformAmd64,
		ExtractDir: "easytier-linux-x86_64",
	}
}

func TestInstallExtractsAndMarksExecutable(t *testing.T) {
	target := t.TempDir()
	archive := makeArchive(t, t.TempDir(), "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "core binary",
		models.CliBinary:  "cli binary",
	})

	err := New(target, "run-1").Install(archive, testAsset("2.3.0"))
	require.NoError(t, err)

	for _, name := range []string{models.CoreBinary, models.CliBinary} {
		info, err := os.Stat(filepath.Join(target, name))
		require.NoError(t, err, "binary %s must exist", name)
		assert.NotZero(t, info.Mode()&0111, "binary %s must be executable", name)
	}

	// Extraction artifacts never persist past a successful install.
	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err), "archive must be removed")
	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".staging-")
	}
}

func TestInstallTwiceKeepsSingleBackupGeneration(t *testing.T) {
	target := t.TempDir()
	scratch := t.TempDir()

	first := makeArchive(t, scratch, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "version one",
	})
	require.NoError(t, New(target, "run-1").Install(first, testAsset("2.3.0")))

	second := makeArchive(t, scratch, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "version two",
	})
	require.NoError(t, New(target, "run-2").Install(second, testAsset("2.4.0")))

	// Target holds the second archive's contents.
	content, err := os.ReadFile(filepath.Join(target, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "version two", string(content))

	// Exactly one backup generation, holding the first install.
	backup, err := os.ReadFile(filepath.Join(target, models.BackupDirName, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "version one", string(backup))

	_, err = os.Stat(filepath.Join(target, models.BackupDirName, models.BackupDirName))
	assert.True(t, os.IsNotExist(err), "backup must not nest previous backups")
}

func TestInstallArchiveInsideTargetDir(t *testing.T) {
	// The install command downloads the archive into the install
	// directory itself, where its name shares the managed prefix. The
	// backup sweep must leave it alone so extraction can still open it.
	target := t.TempDir()
	archive := makeArchive(t, target, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "core binary",
	})
	named := filepath.Join(target, "easytier-linux-x86_64-v2.3.0.zip")
	require.NoError(t, os.Rename(archive, named))

	err := New(target, "run-1").Install(named, testAsset("2.3.0"))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(target, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "core binary", string(content))

	_, err = os.Stat(named)
	assert.True(t, os.IsNotExist(err), "archive must be removed after install")
	_, err = os.Stat(filepath.Join(target, models.BackupDirName))
	assert.True(t, os.IsNotExist(err), "fresh install must not create a backup")
}

func TestReinstallWithArchiveInTargetDirBacksUpBinariesOnly(t *testing.T) {
	target := t.TempDir()

	first := makeArchive(t, target, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "version one",
	})
	firstNamed := filepath.Join(target, "easytier-linux-x86_64-v2.3.0.zip")
	require.NoError(t, os.Rename(first, firstNamed))
	require.NoError(t, New(target, "run-1").Install(firstNamed, testAsset("2.3.0")))

	second := makeArchive(t, target, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "version two",
	})
	secondNamed := filepath.Join(target, "easytier-linux-x86_64-v2.4.0.zip")
	require.NoError(t, os.Rename(second, secondNamed))
	require.NoError(t, New(target, "run-2").Install(secondNamed, testAsset("2.4.0")))

	content, err := os.ReadFile(filepath.Join(target, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "version two", string(content))

	backup, err := os.ReadFile(filepath.Join(target, models.BackupDirName, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "version one", string(backup))

	// Only the previous binaries go to backup, never the archive.
	entries, err := os.ReadDir(filepath.Join(target, models.BackupDirName))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".zip")
	}
}

func TestInstallFailsOnUnreadableArchive(t *testing.T) {
	target := t.TempDir()
	bogus := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip archive"), 0644))

	err := New(target, "run-1").Install(bogus, testAsset("2.3.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrExtractionFailed)
}

func TestInstallFailsWhenExpectedDirMissing(t *testing.T) {
	target := t.TempDir()
	archive := makeArchive(t, t.TempDir(), "some-other-dir", map[string]string{
		models.CoreBinary: "core",
	})

	err := New(target, "run-1").Install(archive, testAsset("2.3.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrExtractionFailed)
}

func TestInstallPreservesPreviousOnExtractionFailure(t *testing.T) {
	target := t.TempDir()
	scratch := t.TempDir()

	good := makeArchive(t, scratch, "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "known good",
	})
	require.NoError(t, New(target, "run-1").Install(good, testAsset("2.3.0")))

	bad := filepath.Join(scratch, "broken.zip")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	require.Error(t, New(target, "run-2").Install(bad, testAsset("2.4.0")))

	// The previous install was moved to backup before the failure and is
	// recoverable by rename-back.
	content, err := os.ReadFile(filepath.Join(target, models.BackupDirName, models.CoreBinary))
	require.NoError(t, err)
	assert.Equal(t, "known good", string(content))
}

func TestUninstallRemovesManagedFiles(t *testing.T) {
	target := t.TempDir()
	archive := makeArchive(t, t.TempDir(), "easytier-linux-x86_64", map[string]string{
		models.CoreBinary: "core",
	})
	inst := New(target, "run-1")
	require.NoError(t, inst.Install(archive, testAsset("2.3.0")))

	// An unmanaged file in the same directory must survive.
	unmanaged := filepath.Join(target, "notes.txt")
	require.NoError(t, os.WriteFile(unmanaged, []byte("keep me"), 0644))

	require.NoError(t, inst.Uninstall())

	_, err := os.Stat(filepath.Join(target, models.CoreBinary))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unmanaged)
	assert.NoError(t, err)
}

func TestExtractZipRejectsPathTraversal(t *testing.T) {
	scratch := t.TempDir()
	path := filepath.Join(scratch, "evil.zip")
	out, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(out)
	f, err := w.Create("../escape")
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	err = extractZip(path, filepath.Join(scratch, "dest"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrExtractionFailed)
}
