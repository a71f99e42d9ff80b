package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Server-side environment variables.
const (
	EnvTransport  = "MCP_TRANSPORT"
	EnvLogLevel   = "OLS_MCP_LOG_LEVEL"
	EnvAuditDB    = "OLS_MCP_AUDIT_DB"
	EnvAuditToken = "OLS_MCP_AUDIT_DB_TOKEN"
)

// Transport selects how MCP frames reach the server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
)

// The HTTP transport always binds here.
const (
	HTTPHost = "0.0.0.0"
	HTTPPort = 8000
)

// ServerSettings are resolved once at startup.
type ServerSettings struct {
	Transport  Transport
	Host       string
	Port       int
	LogLevel   string
	AuditDSN   string
	AuditToken string
}

// Addr is the listen address for the HTTP transport
func (s ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AuditEnabled reports whether invocations are persisted
func (s ServerSettings) AuditEnabled() bool {
	return s.AuditDSN != ""
}

// ResolveServer reads the server settings from the environment.
func ResolveServer(env Environment) (ServerSettings, error) {
	settings := ServerSettings{
		Transport: TransportStdio,
		Host:      HTTPHost,
		Port:      HTTPPort,
		LogLevel:  "info",
	}

	if v, ok := lookup(env, EnvTransport); ok {
		transport, err := ParseTransport(v)
		if err != nil {
			return ServerSettings{}, err
		}
		settings.Transport = transport
	}
	if v, ok := lookup(env, EnvLogLevel); ok {
		settings.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(env, EnvAuditDB); ok {
		settings.AuditDSN = v
	}
	if v, ok := lookup(env, EnvAuditToken); ok {
		settings.AuditToken = v
	}

	return settings, nil
}

// ParseTransport maps an MCP_TRANSPORT value to a Transport.
func ParseTransport(value string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "stdio":
		return TransportStdio, nil
	case "streamable-http", "http":
		return TransportStreamableHTTP, nil
	default:
		return "", fmt.Errorf("unsupported %s %q (want stdio or streamable-http)", EnvTransport, value)
	}
}
