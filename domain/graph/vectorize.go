package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VectorizeKey is the reserved edge property holding the list of property
// keys whose values should be embedded into the vector index.
const VectorizeKey = "vectorize"

// VectorizeText builds the text submitted to the embedding provider from
// an edge's properties. The reserved "vectorize" property names the keys
// to embed; for each named key present in properties a line of the form
// "<key>: <value>" is emitted, with the key lowercased and underscores
// replaced by spaces. String values are lowercased; map values contribute
// their "description" field when present; anything else is serialized as
// JSON. Sections are separated by blank lines.
//
// The second return value is false when the edge requests no
// vectorization or none of the named keys are present.
func VectorizeText(properties map[string]interface{}) (string, bool) {
	keys := vectorizeKeys(properties)
	if len(keys) == 0 {
		return "", false
	}

	var sections []string
	for _, key := range keys {
		value, ok := properties[key]
		if !ok {
			continue
		}
		label := strings.ReplaceAll(strings.ToLower(key), "_", " ")
		sections = append(sections, fmt.Sprintf("%s: %s", label, vectorizeValue(value)))
	}
	if len(sections) == 0 {
		return "", false
	}
	return strings.Join(sections, "\n\n"), true
}

// vectorizeKeys extracts the vectorize hint as a list of property keys.
func vectorizeKeys(properties map[string]interface{}) []string {
	raw, ok := properties[VectorizeKey]
	if !ok {
		return nil
	}

	switch hint := raw.(type) {
	case []string:
		return hint
	case []interface{}:
		keys := make([]string, 0, len(hint))
		for _, v := range hint {
			if s, ok := v.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys
	default:
		return nil
	}
}

func vectorizeValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(v)
	case map[string]interface{}:
		if desc, ok := v["description"].(string); ok {
			return desc
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
