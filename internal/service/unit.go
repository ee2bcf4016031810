package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/coreos/go-systemd/v22/unit"
)

// UnitOptions converts a descriptor into systemd unit-file options.
func UnitOptions(d Descriptor) []*unit.UnitOption {
	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", d.Description),
		unit.NewUnitOption("Unit", "After", "network-online.target"),
		unit.NewUnitOption("Unit", "Wants", "network-online.target"),

		unit.NewUnitOption("Service", "Type", "simple"),
		unit.NewUnitOption("Service", "User", d.User),
		unit.NewUnitOption("Service", "WorkingDirectory", d.WorkingDirectory),
		unit.NewUnitOption("Service", "ExecStart", d.ExecStart),
		unit.NewUnitOption("Service", "Restart", d.Restart),
		unit.NewUnitOption("Service", "RestartSec", strconv.Itoa(d.RestartSec)),
		unit.NewUnitOption("Service", "LimitNOFILE", "65536"),

		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
}

// WriteUnit serializes the descriptor to a unit file under unitDir and
// returns its path. An existing unit file is fully overwritten; only one
// ServiceUnit is active at a time.
func WriteUnit(d Descriptor, unitDir string) (string, error) {
	content, err := io.ReadAll(unit.Serialize(UnitOptions(d)))
	if err != nil {
		return "", fmt.Errorf("failed to serialize unit: %w", err)
	}

	path := filepath.Join(unitDir, d.Name+".service")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write unit file: %w", err)
	}

	return path, nil
}
