package timer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Request
	}{
		{"start", `{"action":"start"}`, Request{Command: CmdStart}},
		{"pause", `{"action":"pause"}`, Request{Command: CmdPause}},
		{"resume", `{"action":"resume"}`, Request{Command: CmdResume}},
		{"stop", `{"action":"stop"}`, Request{Command: CmdStop}},
		{"set", `{"set":"000130"}`, Request{Command: CmdSet, Value: "000130"}},
		{"set keeps raw value", `{"set":"12345"}`, Request{Command: CmdSet, Value: "12345"}},
		{"extra fields ignored", `{"action":"stop","client":"cli"}`, Request{Command: CmdStop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	_, err := ParseRequest([]byte(`{"action":`))
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = ParseRequest([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = ParseRequest([]byte(`{"action":"explode"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseRequest([]byte(`{"hello":"world"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseRequest([]byte(`{"set":10}`))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestRequestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Request{Command: CmdPause})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"pause"}`, string(data))

	data, err = json.Marshal(Request{Command: CmdSet, Value: "000010"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"set":"000010"}`, string(data))

	_, err = json.Marshal(Request{})
	assert.Error(t, err)
}

func TestRequestUnmarshalJSON(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"set":"010000"}`), &req))
	assert.Equal(t, Request{Command: CmdSet, Value: "010000"}, req)
}
