// Package status is the post-install reporter: installed files and
// service state. Pure presentation; nothing here is fatal.
package status

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/easytier-tools/easytier-installer/internal/cmdrunner"
	"github.com/easytier-tools/easytier-installer/pkg/helper"
	"github.com/easytier-tools/easytier-installer/pkg/logger"
	"github.com/easytier-tools/easytier-installer/pkg/models"
	ps "github.com/mitchellh/go-ps"
)

// ServiceStatus is the parsed subset of systemctl status output.
type ServiceStatus struct {
	Loaded  string
	Active  string
	MainPID string
	Tasks   string
	Memory  string
	CPU     string
}

// Reporter prints the final state of an install.
type Reporter struct {
	installDir string
	service    string
	runner     cmdrunner.CommandRunner
	logger     *logger.Logger
	out        io.Writer
}

// NewReporter creates a reporter for the install directory and service.
func NewReporter(installDir, service string, runner cmdrunner.CommandRunner) *Reporter {
	return &Reporter{
		installDir: installDir,
		service:    service,
		runner:     runner,
		logger:     logger.NewLogger("status"),
		out:        os.Stdout,
	}
}

// Report prints the install directory listing followed by the service
// state. Failures are logged and swallowed; reporting must never fail an
// otherwise committed install.
func (r *Reporter) Report(ctx context.Context) {
	defer helper.RecoverPanic(r.logger, "status-report")
	r.reportFiles()
	r.reportService(ctx)
}

func (r *Reporter) reportFiles() {
	entries, err := os.ReadDir(r.installDir)
	if err != nil {
		r.logger.Warnf("Cannot list %s: %v", r.installDir, err)
		return
	}

	fmt.Fprintf(r.out, "Installed files in %s:\n", r.installDir)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(r.out, "  %s  %8d  %s\n", info.Mode(), info.Size(), entry.Name())
	}
}

func (r *Reporter) reportService(ctx context.Context) {
	st, err := r.serviceStatus(ctx)
	if err != nil {
		r.logger.Warnf("Cannot read service status: %v", err)
		// systemd may be unreachable (e.g. containers); fall back to a
		// plain process scan.
		if pid, ok := findProcess(models.CoreBinary); ok {
			fmt.Fprintf(r.out, "Service: %s running (pid %d, found by process scan)\n", models.CoreBinary, pid)
		} else {
			fmt.Fprintf(r.out, "Service: %s not running\n", models.CoreBinary)
		}
		return
	}

	fmt.Fprintf(r.out, "Service %s:\n", r.service)
	fmt.Fprintf(r.out, "  Loaded: %s\n", st.Loaded)
	fmt.Fprintf(r.out, "  Active: %s\n", st.Active)
	if st.MainPID != "" {
		fmt.Fprintf(r.out, "  Main PID: %s\n", st.MainPID)
	}
	if st.Memory != "" {
		fmt.Fprintf(r.out, "  Memory: %s\n", st.Memory)
	}
}

// serviceStatus shells out to systemctl status. Non-zero exit codes are
// expected for inactive services, so the output is parsed regardless.
func (r *Reporter) serviceStatus(ctx context.Context) (*ServiceStatus, error) {
	name := r.service
	if !strings.HasSuffix(name, ".service") {
		name += ".service"
	}

	output, err := r.runner.RunWithOutputNoErrLog(ctx, "systemctl", "status", name)
	if err != nil && strings.Contains(string(output), "could not be found") {
		return nil, fmt.Errorf("service %s not found", name)
	}
	if len(output) == 0 && err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	return parseServiceStatus(string(output)), nil
}

func parseServiceStatus(output string) *ServiceStatus {
	st := &ServiceStatus{}
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Loaded":
			st.Loaded = value
		case "Active":
			st.Active = value
		case "Main PID":
			st.MainPID = value
		case "Tasks":
			st.Tasks = value
		case "Memory":
			st.Memory = value
		case "CPU":
			st.CPU = value
		}
	}

	return st
}

// findProcess scans the process table for the named executable.
func findProcess(name string) (int, bool) {
	procs, err := ps.Processes()
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		if p.Executable() == name || p.Executable() == filepath.Base(name) {
			return p.Pid(), true
		}
	}
	return 0, false
}
