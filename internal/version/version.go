// Package version reports the build version of the catalog binaries.
// Set it at build time with:
//
//	go build -ldflags "-X github.com/ramonehamilton/mtg-catalog/internal/version.Version=v1.2.3"
package version

import "runtime/debug"

// Version is the release version. It defaults to "dev".
var Version = "dev"

// GetVersion returns Version, or the module version recorded in the build
// info when Version was not set and the binary was built with go install.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
