package version //nolint:revive // package name intentionally matches build-info convention

import "runtime/debug"

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository = "github.com/pitabwire/langpack"
	Version    string
	Commit     string
	Date       string
)

// String returns Version, falling back to the module version recorded by the
// go toolchain and then to "dev".
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
