// Package models holds shared constants for on-disk layout and the
// managed artifact naming convention.
package models

const (
	// DefaultInstallDir is where the extracted binaries land.
	DefaultInstallDir = "/opt/easytier"

	// BackupDirName is the sibling directory that holds the previous
	// generation of managed files. Single generation, overwritten on
	// every install.
	BackupDirName = "backup"

	// SystemdPath is the standard unit-file location.
	SystemdPath = "/etc/systemd/system"

	// ServiceName is the managed systemd service.
	ServiceName = "easytier"

	// ManagedPrefix is the naming convention for files owned by the
	// installer inside the install directory.
	ManagedPrefix = "easytier"

	// CoreBinary and CliBinary are the executables shipped in every
	// release archive.
	CoreBinary = "easytier-core"
	CliBinary  = "easytier-cli"

	// DefaultLogFile is where the rotating install log is written.
	DefaultLogFile = "/var/log/easytier-installer.log"
)
