package buildinfo

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/flowshot-io/zipctx/pkg/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("zipctx %s (commit=%s, date=%s)", Version, Commit, Date)
}

// Runtime names the Go toolchain and platform the binary was built for.
func Runtime() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
