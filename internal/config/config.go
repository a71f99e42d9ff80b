package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Environment variable names read by the resolver.
const (
	EnvAPIURL    = "OLS_API_URL"
	EnvAPIToken  = "OLS_API_TOKEN"
	EnvTimeout   = "OLS_TIMEOUT"
	EnvVerifySSL = "OLS_VERIFY_SSL"
)

const (
	// ServiceAccountTokenPath is where the kubelet mounts the pod's token.
	ServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

	InClusterURL = "https://lightspeed-app-server.openshift-lightspeed.svc.cluster.local:8443"
	LocalURL     = "http://localhost:8080"

	DefaultTimeoutSeconds = 30.0

	// QueryPath is appended to the base URL for every query.
	QueryPath = "/v1/query"
)

// TLSPolicy describes how the backend certificate is verified. A non-empty
// CABundle implies Verify.
type TLSPolicy struct {
	Verify   bool
	CABundle string
}

// String renders the policy the way OLS_VERIFY_SSL spells it
func (p TLSPolicy) String() string {
	if p.CABundle != "" {
		return p.CABundle
	}
	return strconv.FormatBool(p.Verify)
}

// Config holds the settings for one outbound query.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	TLS         TLSPolicy
}

// QueryURL joins the base URL and the query endpoint path
func (c Config) QueryURL() string {
	return strings.TrimRight(c.BaseURL, "/") + QueryPath
}

// Authenticated reports whether requests carry a bearer token
func (c Config) Authenticated() bool {
	return c.BearerToken != ""
}

// TimeoutSeconds returns the timeout as fractional seconds
func (c Config) TimeoutSeconds() float64 {
	return c.Timeout.Seconds()
}

// Resolve builds a Config from the environment. It is cheap and is called for
// every query so that environment changes apply immediately.
func Resolve(env Environment) (Config, error) {
	saTokenPresent := env.FileExists(ServiceAccountTokenPath)

	cfg := Config{
		BaseURL: LocalURL,
		TLS:     ParseTLSPolicy(""),
	}
	if saTokenPresent {
		cfg.BaseURL = InClusterURL
	}
	if v, ok := lookup(env, EnvAPIURL); ok {
		cfg.BaseURL = v
	}

	token, err := resolveToken(env, saTokenPresent)
	if err != nil {
		return Config{}, err
	}
	cfg.BearerToken = token

	if v, ok := lookup(env, EnvVerifySSL); ok {
		cfg.TLS = ParseTLSPolicy(v)
	}

	timeout, err := parseTimeout(env)
	if err != nil {
		return Config{}, err
	}
	cfg.Timeout = timeout

	return cfg, nil
}

// ParseTLSPolicy interprets an OLS_VERIFY_SSL value. The empty string means
// the variable is unset.
func ParseTLSPolicy(value string) TLSPolicy {
	switch strings.ToLower(value) {
	case "", "true":
		return TLSPolicy{Verify: true}
	case "false":
		return TLSPolicy{Verify: false}
	default:
		return TLSPolicy{Verify: true, CABundle: value}
	}
}

func resolveToken(env Environment, saTokenPresent bool) (string, error) {
	if v, ok := lookup(env, EnvAPIToken); ok {
		return v, nil
	}
	if !saTokenPresent {
		return "", nil
	}
	raw, err := env.ReadFile(ServiceAccountTokenPath)
	if err != nil {
		return "", fmt.Errorf("read service account token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func parseTimeout(env Environment) (time.Duration, error) {
	seconds := DefaultTimeoutSeconds
	if v, ok := lookup(env, EnvTimeout); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		if parsed <= 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, fmt.Errorf("invalid %s %q: must be a positive number of seconds", EnvTimeout, v)
		}
		// The value must survive the conversion to a non-zero Duration.
		nanos := parsed * float64(time.Second)
		if nanos < 1 || nanos >= math.MaxInt64 {
			return 0, fmt.Errorf("invalid %s %q: out of range", EnvTimeout, v)
		}
		seconds = parsed
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
