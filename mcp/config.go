package mcp

// Protocol and server identity.
const (
	LatestProtocolVersion = "2025-03-26"
	ServerName            = "openshift-lightspeed-mcp"
	ServerVersion         = "0.1.0"
)

// supportedProtocolVersions are accepted from clients; anything else is
// answered with LatestProtocolVersion.
var supportedProtocolVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
}

// Config holds the MCP server identity and options
type Config struct {
	Name         string
	Version      string
	Instructions string

	// Debug logs every frame at debug level
	Debug bool
}

// DefaultConfig returns a config with the server's identity filled in
func DefaultConfig() Config {
	return Config{
		Name:    ServerName,
		Version: ServerVersion,
		Instructions: "Use the openshift_lightspeed tool to ask OpenShift Lightspeed about " +
			"OpenShift, Kubernetes and related technologies.",
	}
}

func negotiateProtocolVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}
