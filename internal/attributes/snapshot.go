package attributes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema accepts only a flat object of string values.
var snapshotSchema = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(
		`{"type":"object","additionalProperties":{"type":"string"}}`,
	))
	if err != nil {
		panic(fmt.Sprintf("attributes: invalid snapshot schema: %v", err))
	}
	return schema
}()

// encodeSnapshot renders items as a compact JSON object with sorted keys.
func encodeSnapshot(items map[string]string) (string, error) {
	if items == nil {
		items = map[string]string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(b), nil
}

// decodeSnapshot parses a persisted snapshot, rejecting anything that is not
// a JSON object of strings.
func decodeSnapshot(raw string) (map[string]string, error) {
	result, err := snapshotSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid snapshot: %s", strings.Join(msgs, "; "))
	}
	var items map[string]string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	if items == nil {
		items = map[string]string{}
	}
	return items, nil
}
