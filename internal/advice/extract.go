package advice

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON indicates a gateway reply that was expected to embed a JSON
// object but did not contain a parseable one. Treated identically to a
// gateway failure by callers.
var ErrNoJSON = errors.New("no embedded JSON object in response")

// ExtractJSON locates the first balanced {...} span in the text. Gateway
// replies embed a JSON object by convention, not guarantee, usually wrapped
// in prose or a markdown fence.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// UnmarshalEmbedded extracts the first balanced JSON object from the text
// and unmarshals it into v.
func UnmarshalEmbedded(text string, v any) error {
	span, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
