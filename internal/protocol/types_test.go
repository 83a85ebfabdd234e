package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageChanges_MarshalJSON_OmitsUnchangedFields(t *testing.T) {
	data, err := json.Marshal(MessageChanges{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestMessageChanges_MarshalJSON_SetValueIncludesIt(t *testing.T) {
	content := "hello"
	pcontent := &content
	data, err := json.Marshal(MessageChanges{Content: &pcontent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"hello"}`, string(data))
}

func TestMessageChanges_MarshalJSON_ClearedValueIsExplicitNull(t *testing.T) {
	var pcontent *string
	data, err := json.Marshal(MessageChanges{Content: &pcontent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":null}`, string(data))
}

func TestMessageChanges_MarshalJSON_MixesAllFieldKinds(t *testing.T) {
	toolOutput := "ran successfully"
	ptoolOutput := &toolOutput
	isError := true
	duration := int64(42)
	pduration := &duration

	data, err := json.Marshal(MessageChanges{
		ToolOutput: &ptoolOutput,
		IsError:    &isError,
		DurationMS: &pduration,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool_output":"ran successfully","is_error":true,"duration_ms":42}`, string(data))
}

func TestMessageUpdate_MarshalJSON_CarriesChanges(t *testing.T) {
	toolOutput := "delivered"
	ptoolOutput := &toolOutput
	data, err := json.Marshal(MessageUpdate{
		MessageID: "m1",
		Changes:   MessageChanges{ToolOutput: &ptoolOutput},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_id":"m1","changes":{"tool_output":"delivered"}}`, string(data))
}
