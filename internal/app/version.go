package app

// Version and BuildCommit are set at build time via -ldflags.
var (
	Version     = "dev"
	BuildCommit = "unknown"
)
