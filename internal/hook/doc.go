// Package hook defines the pre-call hook pipeline that runs over every inbound
// completion request before it is forwarded to the model provider.
//
// A hook receives the caller identity, the shared cache, the decoded request and
// the call type, and returns the request to forward:
//
//	chain := hook.NewChain()
//	chain.Register("thinking", injector)
//	req, err := chain.Run(ctx, caller, cache, req, hook.CallTypeAnthropicMessages)
//
// Request decoding is lenient: fields a hook does not understand are carried
// through untouched, so hooks only ever see the parts of the body they act on.
package hook
