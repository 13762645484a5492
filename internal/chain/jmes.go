package chain

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// EvalAny returns the raw value selected by the JMESPath expression.
// It will return nil and no error if the expression does not match anything.
func EvalAny(expression string, doc any) (any, error) {
	v, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

// SelectRecords evaluates expression against doc and decodes the selected array into []T.
// A selection of null yields an empty slice; any other non-array selection is an error.
func SelectRecords[T any](expression string, doc any) ([]T, error) {
	v, err := EvalAny(expression, doc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []T{}, nil
	}
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("expression %q selected %T, want an array", expression, v)
	}
	// Round-trip through JSON so the typed decoders (Amount, FlexInt) see the original literals.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}
