package script

import "testing"

func TestReplaceVars(t *testing.T) {
	vars := map[string]string{
		"name": "Eve",
		"item": "lantern",
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "single token",
			text: "Hello, {name}.",
			want: "Hello, Eve.",
		},
		{
			name: "multiple tokens",
			text: "{name} raises the {item}.",
			want: "Eve raises the lantern.",
		},
		{
			name: "unknown token passes through",
			text: "Hello, {stranger}.",
			want: "Hello, {stranger}.",
		},
		{
			name: "unterminated brace passes through",
			text: "Hello, {name",
			want: "Hello, {name",
		},
		{
			name: "no tokens",
			text: "Plain text.",
			want: "Plain text.",
		},
		{
			name: "adjacent tokens",
			text: "{name}{item}",
			want: "Evelantern",
		},
		{
			name: "unknown then known token",
			text: "{who} holds the {item}.",
			want: "{who} holds the lantern.",
		},
		{
			name: "empty text",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplaceVars(tt.text, vars); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("nil vars returns text unchanged", func(t *testing.T) {
		if got := ReplaceVars("Hello, {name}.", nil); got != "Hello, {name}." {
			t.Errorf("Expected passthrough, got %q", got)
		}
	})
}
