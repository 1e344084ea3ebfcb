package version

// Version of fableforge. Set at build time via -ldflags for release builds.
var Version = "v0.2.0"
