// Package deps reports whether the external binaries simloop shells out to
// can be executed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"simloop/internal/capture"
	"simloop/internal/config"
)

// Requirement names an external binary and whether simloop can run without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement. Command holds the
// resolved path when the binary was found on PATH.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

const ffmpegDescription = "Encodes h264 and h265 captures"

// CheckBinaries resolves each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

// ResolveFFmpeg reports the ffmpeg binary the video backends will execute.
// An empty command falls back to ffmpeg on PATH.
func ResolveFFmpeg(command string) Status {
	if strings.TrimSpace(command) == "" {
		command = executableName("ffmpeg")
	}
	return resolve(Requirement{Name: "FFmpeg", Command: command, Description: ffmpegDescription})
}

// Requirements lists the external binaries a config depends on. ffmpeg is
// optional unless capture is enabled with a video format.
func Requirements(cfg *config.Config) []Requirement {
	video := false
	if format, err := capture.ParseFormat(cfg.Capture.Format); err == nil {
		video = cfg.Capture.Enabled && format.Kind() == capture.KindVideo
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.FFmpegBinary(),
		Description: ffmpegDescription,
		Optional:    !video,
	}}
}

// resolve uses a command containing a path separator as-is; bare names go
// through PATH.
func resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	st := Status{Requirement: req}
	switch {
	case req.Command == "":
		st.Detail = "command not configured"
	case strings.ContainsRune(req.Command, os.PathSeparator):
		if info, err := os.Stat(req.Command); err != nil || !isExecutable(info) {
			st.Detail = fmt.Sprintf("binary %q is not executable", req.Command)
		} else {
			st.Available = true
		}
	default:
		path, err := exec.LookPath(req.Command)
		if err != nil {
			st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		} else {
			st.Command = path
			st.Available = true
		}
	}
	return st
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}
