package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// Request keys read or written by pre-call hooks.
const (
	KeyModel               = "model"
	KeyMaxTokens           = "max_tokens"
	KeyMaxCompletionTokens = "max_completion_tokens"
	KeyThinking            = "thinking"
	KeyReasoningEffort     = "reasoning_effort"
)

// Request is an in-flight completion request body.
//
// Fields that hooks inspect are decoded into typed, optional fields. Everything
// else, including known keys whose values do not fit their typed field, is kept
// verbatim in Extra so that an untouched request re-encodes to the same object.
type Request struct {
	// Model is nil when the key is absent or not a string.
	Model *string
	// MaxTokens and MaxCompletionTokens are nil unless the value is a positive integer.
	MaxTokens           *int64
	MaxCompletionTokens *int64
	// Thinking and ReasoningEffort are nil iff the key is absent. A JSON null is present.
	Thinking        json.RawMessage
	ReasoningEffort json.RawMessage

	Extra map[string]json.RawMessage
}

var errNotObject = errors.New("request body must be a JSON object")

// ModelName returns the model identifier or "" when unset.
func (r *Request) ModelName() string {
	if r.Model == nil {
		return ""
	}
	return *r.Model
}

// ErrInvalidMaxTokens reports a token limit that is present but not a usable count,
// such as a negative, fractional or string value.
var ErrInvalidMaxTokens = errors.New("invalid token limit")

// RequestedMaxTokens resolves the caller's output ceiling across the two
// synonymous fields. max_tokens takes precedence over max_completion_tokens.
// Absent, null and zero values fall through to the next field; any other value
// that is not a positive integer returns ErrInvalidMaxTokens.
func (r *Request) RequestedMaxTokens() (int64, bool, error) {
	limits := []struct {
		key   string
		value *int64
	}{
		{KeyMaxTokens, r.MaxTokens},
		{KeyMaxCompletionTokens, r.MaxCompletionTokens},
	}

	for _, limit := range limits {
		if limit.value != nil {
			return *limit.value, true, nil
		}
		if raw, ok := r.Extra[limit.key]; ok && !unsetLimit(raw) {
			return 0, false, fmt.Errorf("%s %s: %w", limit.key, raw, ErrInvalidMaxTokens)
		}
	}
	return 0, false, nil
}

// SetMaxTokens writes the canonical max_tokens field.
func (r *Request) SetMaxTokens(n int64) {
	r.MaxTokens = &n
}

// UnmarshalJSON decodes a request object, preserving raw values of unrecognized keys.
func (r *Request) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errNotObject
	}

	*r = Request{Extra: make(map[string]json.RawMessage)}

	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch name {
		case KeyModel:
			if value.Type == gjson.String {
				model := value.String()
				r.Model = &model
				return true
			}
		case KeyMaxTokens:
			if n, ok := positiveInt(value); ok {
				r.MaxTokens = &n
				return true
			}
		case KeyMaxCompletionTokens:
			if n, ok := positiveInt(value); ok {
				r.MaxCompletionTokens = &n
				return true
			}
		case KeyThinking:
			r.Thinking = json.RawMessage(value.Raw)
			return true
		case KeyReasoningEffort:
			r.ReasoningEffort = json.RawMessage(value.Raw)
			return true
		}
		r.Extra[name] = json.RawMessage(value.Raw)
		return true
	})

	return nil
}

// MarshalJSON encodes the request. Typed fields override Extra entries with the same key.
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}

	if r.Model != nil {
		raw, err := json.Marshal(*r.Model)
		if err != nil {
			return nil, err
		}
		out[KeyModel] = raw
	}
	if r.MaxTokens != nil {
		out[KeyMaxTokens] = strconv.AppendInt(nil, *r.MaxTokens, 10)
	}
	if r.MaxCompletionTokens != nil {
		out[KeyMaxCompletionTokens] = strconv.AppendInt(nil, *r.MaxCompletionTokens, 10)
	}
	if r.Thinking != nil {
		out[KeyThinking] = r.Thinking
	}
	if r.ReasoningEffort != nil {
		out[KeyReasoningEffort] = r.ReasoningEffort
	}

	return json.Marshal(out)
}

// positiveInt accepts integral JSON numbers greater than zero (8000 and 8000.0 alike).
// Zero counts as unset, matching how clients omit the field.
func positiveInt(v gjson.Result) (int64, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return v.Int(), true
}

// unsetLimit reports whether a raw token limit means "no limit requested".
func unsetLimit(raw json.RawMessage) bool {
	v := gjson.ParseBytes(raw)
	return v.Type == gjson.Null || (v.Type == gjson.Number && v.Float() == 0)
}
