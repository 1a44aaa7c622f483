package conversation

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Record is the serialized form of one conversation node. Missing fields
// decode as empty strings, so a node with no tags or an empty body is
// representable.
type Record struct {
	Title string `json:"title" yaml:"title"`
	Tags  string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`
}

// DecodeRecords converts generically decoded JSON or YAML into records.
// The top level must be a list of node-shaped objects; anything else is a
// hard error. This is the only fatal condition in script loading.
func DecodeRecords(v any) ([]Record, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("script must be a list of node records, got %T", v)
	}
	records := make([]Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected a node object, got %T", i, item)
		}
		var rec Record
		var err error
		if rec.Title, err = stringField(m, "title", i); err != nil {
			return nil, err
		}
		if rec.Tags, err = stringField(m, "tags", i); err != nil {
			return nil, err
		}
		if rec.Body, err = stringField(m, "body", i); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringField(m map[string]any, key string, i int) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record %d: field %q must be a string, got %T", i, key, v)
	}
	return s, nil
}

// UnmarshalRecords decodes raw script bytes. Format is "json", "yaml" or
// "yml", normally taken from the file extension.
func UnmarshalRecords(data []byte, format string) ([]Record, error) {
	var v any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode script: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode script: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported script format %q", format)
	}
	return DecodeRecords(v)
}
