package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirement defines an external binary retake relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArg, when set, is passed to the binary to read a version line.
	VersionArg string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		if req.VersionArg != "" {
			status.Version = readVersion(ctx, path, req.VersionArg)
		}
		results = append(results, status)
	}
	return results
}

// readVersion returns the first output line of "<path> <arg>", or "" when
// the binary fails or prints nothing.
func readVersion(ctx context.Context, path, arg string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, arg).Output()
	if err != nil {
		return ""
	}
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	return strings.TrimSpace(string(line))
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
