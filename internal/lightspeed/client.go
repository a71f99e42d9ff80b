package lightspeed

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oxhq/ols-mcp/internal/config"
)

// DefaultUserAgent identifies outbound requests.
const DefaultUserAgent = "ols-mcp"

// Client forwards queries to the Lightspeed service. Configuration is
// resolved from its Environment on every call; the client itself keeps no
// per-call state and is safe for concurrent use.
type Client struct {
	env       config.Environment
	userAgent string
	base      *http.Transport
}

// Option customizes a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTransport sets the transport each call clones before applying its TLS
// policy.
func WithTransport(t *http.Transport) Option {
	return func(c *Client) {
		c.base = t
	}
}

// NewClient creates a client reading configuration from env.
func NewClient(env config.Environment, opts ...Option) *Client {
	c := &Client{
		env:       env,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == nil {
		c.base = http.DefaultTransport.(*http.Transport)
	}
	return c
}

// Forward sends one query and waits for the answer. Every failure is an
// *Error.
func (c *Client) Forward(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return QueryResponse{}, otherError(errors.New("query must not be empty"))
	}

	cfg, err := config.Resolve(c.env)
	if err != nil {
		return QueryResponse{}, otherError(fmt.Errorf("resolve configuration: %w", err))
	}

	httpClient, err := c.httpClient(cfg)
	if err != nil {
		return QueryResponse{}, transportError(err)
	}
	defer httpClient.CloseIdleConnections()

	httpReq, err := c.newRequest(ctx, cfg, req)
	if err != nil {
		return QueryResponse{}, otherError(err)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return QueryResponse{}, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResponse{}, transportError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return QueryResponse{}, httpStatusError(resp.StatusCode, string(data))
	}

	return decodeResponse(data, req.ConversationID)
}

func (c *Client) newRequest(ctx context.Context, cfg config.Config, req QueryRequest) (*http.Request, error) {
	payload := QueryRequest{Query: req.Query}
	if req.ConversationID != nil && *req.ConversationID != "" {
		payload.ConversationID = req.ConversationID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.QueryURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if cfg.Authenticated() {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.BearerToken)
	}
	return httpReq, nil
}

func (c *Client) httpClient(cfg config.Config) (*http.Client, error) {
	tlsCfg, err := tlsConfig(c.env, cfg.TLS)
	if err != nil {
		return nil, err
	}

	transport := c.base.Clone()
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		// A redirect is reported as a non-2xx status rather than followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func tlsConfig(env config.Environment, policy config.TLSPolicy) (*tls.Config, error) {
	if !policy.Verify {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // OLS_VERIFY_SSL=false
	}
	if policy.CABundle == "" {
		return nil, nil
	}

	pemData, err := env.ReadFile(policy.CABundle)
	if err != nil {
		return nil, fmt.Errorf("load CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("load CA bundle: no certificates found in %s", policy.CABundle)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func decodeResponse(data []byte, requested *string) (QueryResponse, error) {
	var wire *wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return QueryResponse{}, decodeError(err)
	}
	if wire == nil {
		return QueryResponse{}, decodeError(errors.New("response body is not a JSON object"))
	}

	out := QueryResponse{
		Response:       NoResponseText,
		ConversationID: requested,
	}
	if wire.Response != nil {
		out.Response = *wire.Response
	}
	if wire.ConversationID != nil {
		out.ConversationID = wire.ConversationID
	}
	return out, nil
}
