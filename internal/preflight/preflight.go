package preflight

import (
	"simloop/internal/config"
	"simloop/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results never block a run.
	Optional bool
}

// minFreeBytes is the space a capture directory needs before recording starts.
const minFreeBytes = 256 << 20

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Capture directory", cfg.Paths.CaptureDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Capture.Enabled {
		results = append(results, CheckFreeSpace("Capture free space", cfg.Paths.CaptureDir, minFreeBytes))
	}
	if cfg.Transcode.Enabled {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Transcode.OutputDir))
	}
	for _, status := range CheckSystemDeps(cfg) {
		res := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail, Optional: status.Optional}
		if res.Passed {
			res.Detail = status.Command
		}
		results = append(results, res)
	}
	return results
}

// CheckSystemDeps evaluates the external binaries required by cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
