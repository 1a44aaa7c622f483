package conversation

import (
	"strings"
	"testing"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr string
		wantLen int
	}{
		{
			name: "list of node objects",
			input: []any{
				map[string]any{"title": "Gate", "tags": "start[]", "body": "Guard: Halt."},
				map[string]any{"title": "Road"},
			},
			wantLen: 2,
		},
		{
			name:    "missing fields decode to empty strings",
			input:   []any{map[string]any{}},
			wantLen: 1,
		},
		{
			name:    "top level object is fatal",
			input:   map[string]any{"title": "Gate"},
			wantErr: "must be a list",
		},
		{
			name:    "top level string is fatal",
			input:   "Gate",
			wantErr: "must be a list",
		},
		{
			name:    "non-object entry is fatal",
			input:   []any{"Gate"},
			wantErr: "expected a node object",
		},
		{
			name:    "non-string field is fatal",
			input:   []any{map[string]any{"title": 42}},
			wantErr: "must be a string",
		},
		{
			name:    "empty list is a valid empty script",
			input:   []any{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeRecords(tt.input)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Expected error containing %q, got none", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(records) != tt.wantLen {
				t.Errorf("Expected %d records, got %d", tt.wantLen, len(records))
			}
		})
	}
}

func TestUnmarshalRecords(t *testing.T) {
	jsonData := `[{"title": "Gate", "tags": "start[]", "body": "Guard: Halt."}]`
	records, err := UnmarshalRecords([]byte(jsonData), "json")
	if err != nil {
		t.Fatalf("JSON decode failed: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Gate" {
		t.Errorf("Unexpected records: %+v", records)
	}

	yamlData := "- title: Gate\n  tags: start[]\n  body: |-\n    Guard: Halt.\n    Eve: Easy now.\n"
	records, err = UnmarshalRecords([]byte(yamlData), "yaml")
	if err != nil {
		t.Fatalf("YAML decode failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !strings.Contains(records[0].Body, "Easy now.") {
		t.Errorf("Unexpected body: %q", records[0].Body)
	}

	if _, err := UnmarshalRecords([]byte(`{"title": "Gate"}`), "json"); err == nil {
		t.Error("Expected non-list JSON to fail")
	}
	if _, err := UnmarshalRecords([]byte(jsonData), "toml"); err == nil {
		t.Error("Expected unsupported format to fail")
	}
}
