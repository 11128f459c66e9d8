// Package buildinfo holds version and build metadata stamped at compile
// time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/nugget/chatur/internal/buildinfo.Version=v0.3.0"
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// BuildInfo returns the compile-time stamps.
func BuildInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
	}
}

// RuntimeInfo describes the running process: Go version, platform, CPU
// count and uptime.
func RuntimeInfo() map[string]string {
	return map[string]string{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"num_cpu":    fmt.Sprint(runtime.NumCPU()),
		"goroutines": fmt.Sprint(runtime.NumGoroutine()),
		"uptime":     Uptime().String(),
	}
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return "chatur/" + Version
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("Chatur %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
