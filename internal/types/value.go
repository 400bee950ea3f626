package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Value is the tagged union stored for extracted variables: either a
// scalar string or an ordered sequence of JSON values.
type Value struct {
	Scalar   *string
	Sequence []interface{}
}

// ScalarValue wraps a string as a scalar Value.
func ScalarValue(s string) Value {
	return Value{Scalar: &s}
}

// SequenceValue wraps a list as a sequence Value.
func SequenceValue(items []interface{}) Value {
	return Value{Sequence: items}
}

// IsSequence reports whether the value holds a sequence.
func (v Value) IsSequence() bool {
	return v.Scalar == nil
}

// String renders the value for placeholder substitution: the scalar
// itself, or the sequence serialized as JSON.
func (v Value) String() string {
	if v.Scalar != nil {
		return *v.Scalar
	}
	data, err := json.Marshal(v.Sequence)
	if err != nil {
		return ""
	}
	return string(data)
}

// Stringify converts an arbitrary decoded JSON value to its string form,
// marshaling complex values back to JSON.
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// extractionSpecAlias avoids recursing into the custom unmarshalers.
type extractionSpecAlias ExtractionSpec

// UnmarshalJSON accepts either a bare path string or a typed object.
// Bare strings come from legacy scenarios ("user_count": "total") and are
// recorded as such for engine-mode selection.
func (s *ExtractionSpec) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*s = ExtractionSpec{Type: ExtractPath, Expression: expr, Bare: true}
		return nil
	}

	var alias extractionSpecAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("extraction must be a path string or an object: %w", err)
	}
	*s = ExtractionSpec(alias)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML scenario documents.
func (s *ExtractionSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var expr string
		if err := node.Decode(&expr); err != nil {
			return err
		}
		*s = ExtractionSpec{Type: ExtractPath, Expression: expr, Bare: true}
		return nil
	}

	var alias extractionSpecAlias
	if err := node.Decode(&alias); err != nil {
		return fmt.Errorf("extraction must be a path string or an object: %w", err)
	}
	*s = ExtractionSpec(alias)
	return nil
}
