package gate

// set at build time via -ldflags
var (
	ApplicationVersion   = "dev"
	ApplicationBuildDate = "unknown"
)
