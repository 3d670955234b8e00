package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["item", "quantity"],
	"properties": {
		"item": {"type": "string", "minLength": 1},
		"quantity": {"type": "integer", "minimum": 1}
	}
}`

func TestSchema_DecodeInto(t *testing.T) {
	schema := MustCompile(testSchema)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		item    string
	}{
		{"plain object", `{"item":"Barolo","quantity":3}`, false, "Barolo"},
		{"fenced object", "```json\n{\"item\":\"Chianti\",\"quantity\":2}\n```", false, "Chianti"},
		{"zero quantity", `{"item":"Barolo","quantity":0}`, true, ""},
		{"missing item", `{"quantity":2}`, true, ""},
		{"no json", `sorry, I cannot help`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Item     string `json:"item"`
				Quantity int    `json:"quantity"`
			}
			err := schema.DecodeInto(tt.raw, &out)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSchemaViolation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.item, out.Item)
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
