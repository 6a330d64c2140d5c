// Package version reports the stockwatch build version.
package version

import "runtime"

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// String returns the version with the Go platform it was built for.
func String() string {
	return Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
