package config

// Build metadata injected at build time via ldflags.
//
// Build with:
//   go build -ldflags "-X 'github.com/seadexarr/seadexarr/internal/config.Version=v1.2.0'"
var (
	Version = "dev"
	Commit  string
)
