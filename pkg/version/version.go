package version

// Set by -ldflags "-X github.com/pcran/pcran/pkg/version.Version=...".
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
)
