// Package lightspeed forwards assistant queries to the OpenShift Lightspeed
// service and normalizes its replies and failures.
package lightspeed

// NoResponseText is returned when the service answers without a response.
const NoResponseText = "No response received"

// QueryRequest is one question for the assistant.
type QueryRequest struct {
	Query          string  `json:"query"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// QueryResponse is the assistant's answer. ConversationID falls back to the
// caller's value when the service does not return one.
type QueryResponse struct {
	Response       string  `json:"response"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// wireResponse mirrors the service body; both fields may be absent or null.
type wireResponse struct {
	Response       *string `json:"response"`
	ConversationID *string `json:"conversation_id"`
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
