package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchema(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"complete", `{"summary":"A kitchen","objects":["kettle"],"text":""}`, true},
		{"fenced", "```json\n{\"summary\":\"A kitchen\",\"objects\":[],\"text\":\"\"}\n```", true},
		{"missing objects", `{"summary":"A kitchen","text":""}`, false},
		{"objects not strings", `{"summary":"A kitchen","objects":[1,2],"text":""}`, false},
		{"extra field", `{"summary":"A kitchen","objects":[],"text":"","mood":"calm"}`, false},
		{"not json", `the photo shows a kitchen`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSchema(DescriptionSchema, json.RawMessage(tt.raw))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var inv *ErrInvalidResponse
			assert.ErrorAs(t, err, &inv)
		})
	}
}

func TestCheckSchema_NilAcceptsAnything(t *testing.T) {
	assert.NoError(t, checkSchema(nil, json.RawMessage(`not even json`)))
}

func TestDecodeStructured(t *testing.T) {
	var d Description
	raw := json.RawMessage("```\n{\"summary\":\"A bus stop\",\"objects\":[\"sign\"],\"text\":\"LINE 12\"}\n```")
	require.NoError(t, decodeStructured(DescriptionSchema, raw, &d))
	assert.Equal(t, "A bus stop", d.Summary)
	assert.Equal(t, "LINE 12", d.Text)

	err := decodeStructured(DescriptionSchema, json.RawMessage(`{"summary":"A bus stop"}`), &d)
	var inv *ErrInvalidResponse
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Error(), "photo-description")
}

func TestUnfence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(unfence([]byte("  {\"a\":1}\n"))))
	assert.Equal(t, `{"a":1}`, string(unfence([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(unfence([]byte("```\n{\"a\":1}```"))))
}

func TestCompileIsCached(t *testing.T) {
	a, err := compile(DescriptionSchema)
	require.NoError(t, err)
	b, err := compile(DescriptionSchema)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
