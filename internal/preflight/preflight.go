// Package preflight verifies the run can proceed before any network or
// filesystem mutation happens.
package preflight

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
)

// Options controls which checks run.
type Options struct {
	// InstallDir must be creatable/writable.
	InstallDir string
	// RequireService adds the systemctl availability check.
	RequireService bool
	// RequireRoot enforces the privilege check. Disabled in tests.
	RequireRoot bool
}

// Check validates privileges, required host tooling, and the install
// directory. It fails instead of re-executing itself with elevation; the
// operator is told to re-invoke with sudo.
func Check(opts Options) error {
	log := logger.NewLogger("preflight")

	if opts.RequireRoot && os.Geteuid() != 0 {
		return fmt.Errorf("%w: re-run with sudo or as root", errdefs.ErrPrivilege)
	}

	// Fetch and extraction are in-process, so unlike the script era there
	// is no curl/unzip bootstrap. systemctl is the only host tool left.
	if opts.RequireService {
		if _, err := exec.LookPath("systemctl"); err != nil {
			return fmt.Errorf("%w: systemctl not found (is this a systemd host?)", errdefs.ErrDependencyMissing)
		}
	}

	if opts.InstallDir != "" {
		if err := os.MkdirAll(opts.InstallDir, 0755); err != nil {
			return fmt.Errorf("install directory %s is not usable: %w", opts.InstallDir, err)
		}
	}

	log.Debug("Preflight checks passed")
	return nil
}
