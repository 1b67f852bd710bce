// Package build carries version metadata stamped in with -ldflags.
package build

var (
	Version   = "dev"
	Number    = "local"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns the build metadata keyed by name.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"number":     Number,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	}
}
