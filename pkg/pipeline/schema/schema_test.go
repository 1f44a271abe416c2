package schema

import (
	"fmt"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare json",
			response: `{"a": 1}`,
			want:     `{"a": 1}`,
		},
		{
			name:     "code fence",
			response: "```json\n{\"a\": 1}\n```",
			want:     `{"a": 1}`,
		},
		{
			name:     "prose around json",
			response: `Here is the result: {"a": 1} as requested.`,
			want:     `{"a": 1}`,
		},
		{
			name:     "no json passes through",
			response: "no structured content here",
			want:     "no structured content here",
		},
		{
			name:     "mismatched braces pass through",
			response: "}{",
			want:     "}{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.response); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsError(t *testing.T) {
	plain := fmt.Errorf("connection refused")
	if IsError(plain) {
		t.Error("transport failure must not classify as a schema error")
	}

	schemaErr := NewError("differential", fmt.Errorf("unexpected end of JSON input"))
	if !IsError(schemaErr) {
		t.Error("schema error must classify")
	}
	if !IsError(fmt.Errorf("generate: %w", schemaErr)) {
		t.Error("wrapped schema error must classify")
	}
}
