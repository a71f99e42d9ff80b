package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oxhq/ols-mcp/internal/lightspeed"
	"github.com/oxhq/ols-mcp/mcp/types"
	"github.com/oxhq/ols-mcp/models"
	"github.com/oxhq/ols-mcp/pkg/logger"
)

// LightspeedToolName is the name clients call.
const LightspeedToolName = "openshift_lightspeed"

const errorPrefix = "Error: "

var errQueryRequired = errors.New("query is required")

// Forwarder sends a query to the assistant backend.
type Forwarder interface {
	Forward(ctx context.Context, req lightspeed.QueryRequest) (lightspeed.QueryResponse, error)
}

// QueryRecorder persists invocations for auditing.
type QueryRecorder interface {
	RecordQuery(ctx context.Context, record *models.QueryRecord) error
}

// LightspeedTool asks OpenShift Lightspeed a question. Failures never
// surface as protocol errors: they come back as "Error: ..." text.
type LightspeedTool struct {
	*BaseTool
	forwarder Forwarder
	recorder  QueryRecorder
	notifier  types.Notifier
	log       *slog.Logger
}

// LightspeedOption customizes a LightspeedTool.
type LightspeedOption func(*LightspeedTool)

// WithRecorder enables the audit log.
func WithRecorder(r QueryRecorder) LightspeedOption {
	return func(t *LightspeedTool) {
		t.recorder = r
	}
}

// WithNotifier forwards failures to the client as MCP log messages.
func WithNotifier(n types.Notifier) LightspeedOption {
	return func(t *LightspeedTool) {
		t.notifier = n
	}
}

// WithToolLogger sets the operator-facing logger.
func WithToolLogger(log *slog.Logger) LightspeedOption {
	return func(t *LightspeedTool) {
		t.log = log
	}
}

// NewLightspeedTool creates the tool around forwarder.
func NewLightspeedTool(forwarder Forwarder, opts ...LightspeedOption) *LightspeedTool {
	tool := &LightspeedTool{
		forwarder: forwarder,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(tool)
	}

	tool.BaseTool = NewTool(LightspeedToolName).
		WithDescription("Query OpenShift LightSpeed for assistance with OpenShift, Kubernetes, and related technologies.").
		WithInputSchema(ObjectSchema(map[string]any{
			"query":           StringProperty("The question to ask OpenShift Lightspeed"),
			"conversation_id": StringProperty("Optional conversation ID to continue an existing conversation"),
		}, "query")).
		WithHandler(tool.handle).
		Build()

	return tool
}

type lightspeedArgs struct {
	Query          string  `json:"query"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

func (t *LightspeedTool) handle(ctx context.Context, params json.RawMessage) (any, error) {
	args, err := ParseParams[lightspeedArgs](params)
	if err != nil {
		// A well-formed object with a mistyped field is a tool failure, not
		// a protocol one.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" && isObject(params) {
			return types.TextResult(errorPrefix + typeErr.Field + " must be a string"), nil
		}
		return nil, types.WrapError(types.InvalidParams, "Invalid openshift_lightspeed arguments", err)
	}

	resp, err := t.Ask(ctx, args.Query, args.ConversationID)
	if err != nil {
		return types.TextResult(errorPrefix + err.Error()), nil
	}

	result := types.TextResult(resp.Response)
	if resp.ConversationID != nil {
		result.Meta = map[string]any{"conversation_id": *resp.ConversationID}
	}
	return result, nil
}

func isObject(params json.RawMessage) bool {
	trimmed := bytes.TrimSpace(params)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Ask forwards the query, logs and audits the outcome, and returns the
// forwarder's result unchanged.
func (t *LightspeedTool) Ask(ctx context.Context, query string, conversationID *string) (lightspeed.QueryResponse, error) {
	if strings.TrimSpace(query) == "" {
		return lightspeed.QueryResponse{}, errQueryRequired
	}
	if conversationID != nil && *conversationID == "" {
		conversationID = nil
	}

	log := t.logger(ctx)
	start := time.Now()
	resp, err := t.forwarder.Forward(ctx, lightspeed.QueryRequest{
		Query:          query,
		ConversationID: conversationID,
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Error("Error calling OpenShift Lightspeed",
			"error", err,
			"kind", lightspeed.KindOf(err).String(),
			"duration", elapsed)
		if t.notifier != nil {
			t.notifier.LogMessage(ctx, "error", map[string]any{
				"message": "Error calling OpenShift Lightspeed",
				"error":   err.Error(),
			})
		}
	} else {
		log.Info("OpenShift Lightspeed answered",
			"duration", elapsed,
			"conversation_id", lightspeed.Deref(resp.ConversationID))
	}

	t.record(ctx, query, conversationID, resp, err, elapsed)
	return resp, err
}

// logger prefers the request-scoped logger carried by ctx.
func (t *LightspeedTool) logger(ctx context.Context) *slog.Logger {
	if log, ok := logger.Lookup(ctx); ok {
		return log
	}
	return t.log
}

func (t *LightspeedTool) record(ctx context.Context, query string, conversationID *string, resp lightspeed.QueryResponse, callErr error, elapsed time.Duration) {
	if t.recorder == nil {
		return
	}

	rec := &models.QueryRecord{
		Query:                 query,
		RequestConversationID: lightspeed.Deref(conversationID),
		DurationMS:            elapsed.Milliseconds(),
	}
	if callErr != nil {
		rec.Outcome = lightspeed.KindOf(callErr).String()
		rec.StatusCode = lightspeed.StatusCodeOf(callErr)
		rec.ErrorMessage = callErr.Error()
	} else {
		rec.Outcome = models.OutcomeOK
		rec.ResponseConversationID = lightspeed.Deref(resp.ConversationID)
		rec.ResponseChars = len([]rune(resp.Response))
	}

	// The audit write must not fail because the caller went away.
	if err := t.recorder.RecordQuery(context.WithoutCancel(ctx), rec); err != nil {
		t.logger(ctx).Warn("failed to record query", "error", err)
	}
}
