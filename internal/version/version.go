package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X github.com/agentify/agentify/internal/version.Version=v1.0.0".
var Version = "dev"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// UserAgent identifies this service in outbound HTTP requests.
func UserAgent() string {
	return "Agentify/" + Version
}
