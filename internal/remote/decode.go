package remote

import (
	"encoding/json"
	"fmt"
)

// decodeCollection extracts the named array field from a response body. A body
// that is not an object, a missing field, and a field that does not decode into
// []T all yield an empty non-nil slice. Only a body that is not JSON is an error.
func decodeCollection[T any](body []byte, field string) ([]T, error) {
	if len(body) == 0 {
		return []T{}, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decode %s: invalid JSON body", field)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return []T{}, nil
	}
	raw, ok := obj[field]
	if !ok {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}, nil
	}
	return out, nil
}
