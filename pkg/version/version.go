// Package version carries build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata, overridden at link time:
//
//	-ldflags "-X github.com/Sumatoshi-tech/mnemoscan/pkg/version.Version=v1.0.0"
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills unset metadata from the module build info embedded
// by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	applyBuildInfo(info)
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for the given binary name.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", binary, Version, Commit, Date)
}
