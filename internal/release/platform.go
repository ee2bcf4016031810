package release

import (
	"fmt"
	"sort"
	"strings"

	"github.com/easytier-tools/easytier-installer/pkg/errdefs"
	"golang.org/x/sys/unix"
)

// Platform is one of the closed set of supported install targets.
type Platform string

const (
	PlatformAmd64 Platform = "amd64"
	PlatformArm64 Platform = "arm64"
	PlatformArmv7 Platform = "armv7"
	PlatformI386  Platform = "i386"
	PlatformMips  Platform = "mips"
)

// archAliases maps machine-architecture identifiers (uname -m style) to
// supported platforms. Canonical platform names map to themselves so an
// explicit "amd64" and an explicit "x86_64" both resolve.
var archAliases = map[string]Platform{
	"amd64":   PlatformAmd64,
	"x86_64":  PlatformAmd64,
	"arm64":   PlatformArm64,
	"aarch64": PlatformArm64,
	"armv7":   PlatformArmv7,
	"armv7l":  PlatformArmv7,
	"i386":    PlatformI386,
	"i686":    PlatformI386,
	"mips":    PlatformMips,
}

// assetLabels maps platforms to the architecture label used in release
// asset filenames.
var assetLabels = map[Platform]string{
	PlatformAmd64: "x86_64",
	PlatformArm64: "aarch64",
	PlatformArmv7: "armv7",
	PlatformI386:  "i386",
	PlatformMips:  "mips",
}

// AssetLabel returns the architecture label used in asset filenames.
func (p Platform) AssetLabel() string {
	return assetLabels[p]
}

// SupportedPlatforms lists the closed platform set, sorted for stable
// error messages.
func SupportedPlatforms() []string {
	names := make([]string, 0, len(assetLabels))
	for p := range assetLabels {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// ResolvePlatform maps an explicit platform or the host machine
// architecture to a supported platform. An explicit value outside the
// supported set fails with ErrUnsupportedPlatform; an unmapped detected
// architecture fails with ErrUnsupportedArchitecture. There is no silent
// default.
func ResolvePlatform(explicit string) (Platform, error) {
	if explicit != "" {
		if p, ok := archAliases[strings.ToLower(strings.TrimSpace(explicit))]; ok {
			return p, nil
		}
		return "", fmt.Errorf("%w: %q (supported: %s)",
			errdefs.ErrUnsupportedPlatform, explicit, strings.Join(SupportedPlatforms(), ", "))
	}

	machine, err := machineArch()
	if err != nil {
		return "", fmt.Errorf("failed to detect architecture: %w", err)
	}

	if p, ok := archAliases[machine]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", errdefs.ErrUnsupportedArchitecture, machine)
}

// machineArch reads the host machine-architecture identifier. Variable
// so tests can simulate foreign hosts.
var machineArch = func() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return strings.ToLower(unix.ByteSliceToString(uts.Machine[:])), nil
}
