package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedReply is returned when no usable {order, explanation}
// object can be recovered from the model text.
var ErrMalformedReply = errors.New("malformed llm reply")

// OrderReply is the object the ordering prompt asks for.
type OrderReply struct {
	Order       []int64
	Explanation string
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractObject returns the first balanced top-level {...} span of text,
// skipping braces inside JSON strings. When the braces never balance it
// falls back to the span from the first '{' to the last '}'.
func ExtractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseOrderReply recovers an OrderReply from free model text: fences are
// stripped, surrounding prose discarded, and both fields must be present.
// Ids may be JSON numbers or numeric strings.
func ParseOrderReply(text string) (*OrderReply, error) {
	obj, ok := ExtractObject(StripFences(text))
	if !ok {
		return nil, ErrMalformedReply
	}

	var raw struct {
		Order       []json.RawMessage `json:"order"`
		Explanation *string           `json:"explanation"`
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, ErrMalformedReply
	}
	if raw.Order == nil || raw.Explanation == nil {
		return nil, ErrMalformedReply
	}

	ids := make([]int64, 0, len(raw.Order))
	for _, item := range raw.Order {
		id, err := parseID(item)
		if err != nil {
			return nil, ErrMalformedReply
		}
		ids = append(ids, id)
	}

	return &OrderReply{Order: ids, Explanation: strings.TrimSpace(*raw.Explanation)}, nil
}

func parseID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}
