// Package errdefs defines the error kinds surfaced by the install pipeline.
// Callers match them with errors.Is instead of string comparison.
package errdefs

import "errors"

var (
	// ErrPrivilege indicates the process is not running with root privileges.
	ErrPrivilege = errors.New("root privileges required")

	// ErrDependencyMissing indicates a required host tool is not installed.
	ErrDependencyMissing = errors.New("required dependency missing")

	// ErrInvalidVersionFormat indicates a version string does not match
	// the expected major.minor.patch triple.
	ErrInvalidVersionFormat = errors.New("invalid version format")

	// ErrUnsupportedArchitecture indicates the detected machine
	// architecture has no mapping to a supported platform.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")

	// ErrUnsupportedPlatform indicates an explicitly requested platform
	// is not in the supported set.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrVersionResolution indicates both the primary index and the mirror
	// failed. The resolver degrades to the default version instead of
	// surfacing this to callers.
	ErrVersionResolution = errors.New("version resolution exhausted")

	// ErrFetchExhausted indicates the download failed after all retries.
	ErrFetchExhausted = errors.New("download retries exhausted")

	// ErrExtractionFailed indicates the archive could not be unpacked or
	// did not contain the expected layout.
	ErrExtractionFailed = errors.New("archive extraction failed")

	// ErrServiceInstall indicates service registration failed. The binary
	// install is a separate commit point and is not rolled back.
	ErrServiceInstall = errors.New("service install failed")
)
