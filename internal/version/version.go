// Package version holds build information stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/DhimiMohamed/taskmanager/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build information as "<version> (commit <c>, built <d>)".
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
