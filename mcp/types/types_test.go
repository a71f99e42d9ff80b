package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextResult(t *testing.T) {
	data, err := json.Marshal(TextResult("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"hello"}],"isError":false}`, string(data))

	result := TextResult("hi")
	result.Meta = map[string]any{"conversation_id": "c1"}
	data, err = json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"hi"}],"isError":false,"_meta":{"conversation_id":"c1"}}`, string(data))
}

func TestError(t *testing.T) {
	assert.Equal(t, "bad (-32602)", NewError(InvalidParams, "bad").Error())
	assert.Equal(t, "bad (-32602): extra", NewError(InvalidParams, "bad", "extra").Error())

	wrapped := WrapError(InvalidParams, "bad", errors.New("cause"))
	assert.Equal(t, "cause", wrapped.Data)
	assert.Nil(t, WrapError(InternalError, "x", nil).Data)
}
