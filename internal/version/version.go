package version

import "runtime"

// Set at build time with -ldflags "-X github.com/stegokey/backend-go/internal/version.Version=...".
var (
	Version     = "dev"
	VersionLong = ""
	BuildTime   = ""
)

type VersionStat struct {
	Version     string `json:"version" yaml:"version"`
	VersionLong string `json:"versionLong,omitempty" yaml:"versionLong,omitempty"`
	BuildTime   string `json:"buildTime,omitempty" yaml:"buildTime,omitempty"`
	GoVersion   string `json:"goVersion" yaml:"goVersion"`
}

func GetVersion() VersionStat {
	return VersionStat{
		Version:     Version,
		VersionLong: VersionLong,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}
