package version

// Version is overridden at build time via -ldflags "-X github.com/lumenmfb/backend/internal/version.Version=...".
var Version = "dev"
