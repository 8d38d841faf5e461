package hook

import (
	"context"
	"fmt"
	"log/slog"
)

// CallType tags the kind of upstream call a request is headed for.
type CallType string

const (
	CallTypeCompletion        CallType = "completion"
	CallTypeAnthropicMessages CallType = "anthropic_messages"
)

// Caller identifies who sent a request. Hooks may use it for auditing; it is never
// trusted for authorization.
type Caller struct {
	// RequestID correlates log records for a single inbound request.
	RequestID string
	// KeyFingerprint is a short, non-reversible digest of the presented credential.
	KeyFingerprint string
}

// PreCallHook inspects and optionally mutates a request before it is forwarded upstream.
//
// Implementations receive the request by reference and return the request to pass on,
// which is usually the same instance. Returning an error rejects the request.
type PreCallHook interface {
	PreCall(ctx context.Context, caller Caller, cache Cache, req *Request, callType CallType) (*Request, error)
}

// PreCallHookFunc adapts a function to the PreCallHook interface.
type PreCallHookFunc func(ctx context.Context, caller Caller, cache Cache, req *Request, callType CallType) (*Request, error)

// PreCall implements PreCallHook.
func (f PreCallHookFunc) PreCall(ctx context.Context, caller Caller, cache Cache, req *Request, callType CallType) (*Request, error) {
	return f(ctx, caller, cache, req, callType)
}

type namedHook struct {
	name string
	hook PreCallHook
}

// Chain runs registered hooks in registration order.
// Register all hooks before the chain is shared; Run is safe for concurrent use afterwards.
type Chain struct {
	hooks []namedHook
}

// NewChain creates an empty Chain.
func NewChain() *Chain {
	return &Chain{}
}

// Register appends a hook under the given name.
func (c *Chain) Register(name string, h PreCallHook) {
	c.hooks = append(c.hooks, namedHook{name: name, hook: h})
}

// Len reports the number of registered hooks.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// Run passes req through every hook. Each hook sees the previous hook's output;
// a hook returning a nil request leaves the current one in place.
// The first error stops the chain.
func (c *Chain) Run(ctx context.Context, caller Caller, cache Cache, req *Request, callType CallType) (*Request, error) {
	for _, h := range c.hooks {
		out, err := h.hook.PreCall(ctx, caller, cache, req, callType)
		if err != nil {
			slog.DebugContext(ctx, "pre-call hook rejected request",
				"hook", h.name,
				"request_id", caller.RequestID,
				"error", err,
			)
			return nil, fmt.Errorf("%s: %w", h.name, err)
		}
		if out != nil {
			req = out
		}
	}
	return req, nil
}
