package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/florianilch/thinkgate/internal/hook"
	"github.com/florianilch/thinkgate/internal/thinking"
)

// normalizeJSON converts a JSON string to its canonical form for comparison.
func normalizeJSON(t *testing.T, s string) string {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("Invalid JSON: %v\nJSON: %s", err, s)
	}
	normalized, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to normalize JSON: %v", err)
	}
	return string(normalized)
}

// capture records what the wrapped handler received.
type capture struct {
	called        bool
	body          string
	contentLength int64
	header        http.Header
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		body, _ := io.ReadAll(r.Body)
		c.body = string(body)
		c.contentLength = r.ContentLength
		c.header = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})
}

func thinkingChain(t *testing.T) *hook.Chain {
	t.Helper()
	injector, err := thinking.New(thinking.Config{})
	if err != nil {
		t.Fatalf("thinking.New: %v", err)
	}
	chain := hook.NewChain()
	chain.Register("thinking", injector)
	return chain
}

func TestPreCallRewritesBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "claude request gets thinking",
			input: `{
				"model": "claude-sonnet-4",
				"max_tokens": 8000,
				"messages": [{"role": "user", "content": "Hello"}]
			}`,
			expected: `{
				"model": "claude-sonnet-4",
				"max_tokens": 8000,
				"messages": [{"role": "user", "content": "Hello"}],
				"thinking": {"type": "enabled", "budget_tokens": 3904}
			}`,
		},
		{
			name: "explicit thinking passes through unchanged",
			input: `{
				"model": "claude-sonnet-4",
				"max_tokens": 8000,
				"thinking": {"type": "disabled"},
				"messages": []
			}`,
			expected: `{
				"model": "claude-sonnet-4",
				"max_tokens": 8000,
				"thinking": {"type": "disabled"},
				"messages": []
			}`,
		},
		{
			name:     "other provider passes through unchanged",
			input:    `{"model": "gpt-4o", "max_completion_tokens": 8000, "messages": []}`,
			expected: `{"model": "gpt-4o", "max_completion_tokens": 8000, "messages": []}`,
		},
		{
			name:     "empty object passes through",
			input:    `{}`,
			expected: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got capture
			h := PreCall(thinkingChain(t), nil, hook.CallTypeAnthropicMessages, DefaultMaxRequestBytes)(got.handler())

			req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(tt.input))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if !got.called {
				t.Fatalf("next handler not called, status %d: %s", rec.Code, rec.Body.String())
			}
			if normalizeJSON(t, got.body) != normalizeJSON(t, tt.expected) {
				t.Errorf("Transformation mismatch:\ngot:  %s\nwant: %s", got.body, normalizeJSON(t, tt.expected))
			}
			if got.contentLength != int64(len(got.body)) {
				t.Errorf("ContentLength %d does not match body length %d", got.contentLength, len(got.body))
			}
		})
	}
}

func TestPreCallForwardsNonObjectBodies(t *testing.T) {
	for _, input := range []string{`[1, 2]`, `not json`, ``} {
		t.Run(input, func(t *testing.T) {
			var got capture
			h := PreCall(thinkingChain(t), nil, hook.CallTypeCompletion, DefaultMaxRequestBytes)(got.handler())

			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(input))
			h.ServeHTTP(httptest.NewRecorder(), req)

			if !got.called {
				t.Fatal("next handler not called")
			}
			if got.body != input {
				t.Errorf("body changed: got %q, want %q", got.body, input)
			}
		})
	}
}

func TestPreCallRejectsOversizedBody(t *testing.T) {
	var got capture
	h := PreCall(thinkingChain(t), nil, hook.CallTypeAnthropicMessages, 16)(got.handler())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model": "claude-3-opus-20240229"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.called {
		t.Error("next handler should not be called")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp.Error.Type != "request_too_large" {
		t.Errorf("expected error type request_too_large, got %q", resp.Error.Type)
	}
}

func TestPreCallHookRejection(t *testing.T) {
	chain := hook.NewChain()
	chain.Register("guard", hook.PreCallHookFunc(func(context.Context, hook.Caller, hook.Cache, *hook.Request, hook.CallType) (*hook.Request, error) {
		return nil, errors.New("model not allowed")
	}))

	var got capture
	h := PreCall(chain, nil, hook.CallTypeAnthropicMessages, DefaultMaxRequestBytes)(got.handler())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model": "claude-3"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.called {
		t.Error("next handler should not be called")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "guard: model not allowed") {
		t.Errorf("error message missing hook name: %s", rec.Body.String())
	}
}

func TestPreCallPassesCallerAndCache(t *testing.T) {
	cache := hook.NewMemoryCache(0, 0)

	var gotCaller hook.Caller
	var gotCache hook.Cache
	var gotCallType hook.CallType

	chain := hook.NewChain()
	chain.Register("inspect", hook.PreCallHookFunc(func(_ context.Context, caller hook.Caller, c hook.Cache, req *hook.Request, callType hook.CallType) (*hook.Request, error) {
		gotCaller, gotCache, gotCallType = caller, c, callType
		return req, nil
	}))

	var got capture
	h := PreCall(chain, cache, hook.CallTypeCompletion, DefaultMaxRequestBytes)(got.handler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer sk-test")
	req.Header.Set("X-Request-Id", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotCaller.RequestID != "req-42" {
		t.Errorf("expected request id from header, got %q", gotCaller.RequestID)
	}
	if gotCaller.KeyFingerprint != fingerprint("sk-test") || len(gotCaller.KeyFingerprint) != 12 {
		t.Errorf("unexpected key fingerprint %q", gotCaller.KeyFingerprint)
	}
	if gotCache != hook.Cache(cache) {
		t.Error("shared cache not passed to hook")
	}
	if gotCallType != hook.CallTypeCompletion {
		t.Errorf("expected call type %q, got %q", hook.CallTypeCompletion, gotCallType)
	}
	if got.header.Get("X-Request-Id") != "req-42" {
		t.Errorf("request id not propagated, got %q", got.header.Get("X-Request-Id"))
	}
}

func TestCallerFromRequest(t *testing.T) {
	t.Run("generates request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		caller := callerFromRequest(req)
		if len(caller.RequestID) != 36 {
			t.Errorf("expected UUID request id, got %q", caller.RequestID)
		}
		if caller.KeyFingerprint != "" {
			t.Errorf("expected empty fingerprint without credentials, got %q", caller.KeyFingerprint)
		}
	})

	t.Run("x-api-key preferred over authorization", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Api-Key", "sk-ant-1")
		req.Header.Set("Authorization", "Bearer sk-other")
		if got := callerFromRequest(req).KeyFingerprint; got != fingerprint("sk-ant-1") {
			t.Errorf("got %q, want fingerprint of x-api-key", got)
		}
	})
}
