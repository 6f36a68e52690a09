// Package deps reports whether the external tools and services the gallery
// tools rely on are reachable.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gallery/internal/config"
)

// Requirement defines an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Probe checks a network dependency.
type Probe struct {
	Name     string
	Target   string
	Optional bool
	Check    func(ctx context.Context) error
}

// Status reports the availability of a dependency.
type Status struct {
	Name      string
	Target    string
	Optional  bool
	Available bool
	Detail    string
}

// Requirements lists the binaries used with cfg. exiftool is only required
// when exif.use_exiftool is enabled.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{{
		Name:        "exiftool",
		Command:     "exiftool",
		Description: "Metadata fallback for RAW and HEIC files",
		Optional:    cfg == nil || !cfg.Exif.UseExiftool,
	}}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{Name: req.Name, Target: cmd, Optional: req.Optional}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if path, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Target = path
			}
		}
		results = append(results, status)
	}
	return results
}

// CheckProbes runs each probe with timeout and reports the outcome.
func CheckProbes(ctx context.Context, probes []Probe, timeout time.Duration) []Status {
	results := make([]Status, 0, len(probes))
	for _, probe := range probes {
		status := Status{Name: probe.Name, Target: probe.Target, Optional: probe.Optional}
		if probe.Check == nil {
			status.Detail = "no check configured"
			results = append(results, status)
			continue
		}
		probeCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		if err := probe.Check(probeCtx); err != nil {
			status.Detail = err.Error()
		} else {
			status.Available = true
		}
		cancel()
		results = append(results, status)
	}
	return results
}

// Healthy reports whether every required dependency is available.
func Healthy(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return false
		}
	}
	return true
}
