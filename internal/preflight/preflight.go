package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"retake/internal/config"
	"retake/internal/deps"
)

// minFreeBytes is the free space below which a directory check warns.
const minFreeBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks and the dependency checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Submissions directory", cfg.Paths.SubmissionsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Submissions free space", cfg.Paths.SubmissionsDir, minFreeBytes),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least min bytes free.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%d MiB free)", path, free>>20)
	if free < min {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %d MiB", min>>20)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// ffmpeg is required only for device capture and ffprobe only when it is the
// configured prober.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Capture.FFmpegBinary,
			Description: "Records replacement footage from local devices",
			Optional:    cfg.Capture.Adapter != "ffmpeg",
			VersionArg:  "-version",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Capture.FFprobeBinary,
			Description: "Reads durations of non-WebM captures",
			Optional:    cfg.Capture.Prober != "ffprobe",
			VersionArg:  "-version",
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

func fromStatus(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available}
	switch {
	case status.Available && status.Version != "":
		result.Detail = status.Version
	case status.Available:
		result.Detail = status.Path
	case status.Optional:
		result.Passed = true
		result.Detail = status.Detail + " (optional)"
	default:
		result.Detail = status.Detail
	}
	return result
}
