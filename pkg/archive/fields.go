package archive

import (
	"encoding/json"
	"fmt"
	"strings"
)

// flexStrings decodes search fields the index returns either as a single value or
// as a list of values.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*f = nil
		return nil
	}

	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*f = flexStrings{one}
		return nil
	}

	var many []json.RawMessage
	if err := json.Unmarshal(b, &many); err == nil {
		out := make(flexStrings, 0, len(many))
		for _, raw := range many {
			s, err := scalarString(raw)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		*f = out
		return nil
	}

	s, err := scalarString(b)
	if err != nil {
		return err
	}
	*f = flexStrings{s}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported field value %s", raw)
}

// joined returns the non-blank values joined by sep, or nil if there are none.
func (f flexStrings) joined(sep string) *string {
	parts := f.nonBlank()
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, sep)
	return &s
}

func (f flexStrings) nonBlank() []string {
	out := make([]string, 0, len(f))
	for _, s := range f {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
