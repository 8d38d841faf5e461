package thinking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/florianilch/thinkgate/internal/hook"
)

// Injector enables Anthropic extended thinking on Claude requests that did not
// configure reasoning themselves.
type Injector struct {
	cfg      Config
	keywords []string
}

// Compile-time check to ensure Injector implements hook.PreCallHook
var _ hook.PreCallHook = (*Injector)(nil)

// New creates an Injector. Unset config fields take their defaults.
func New(cfg Config) (*Injector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thinking config: %w", err)
	}

	keywords := make([]string, len(cfg.ModelKeywords))
	for i, kw := range cfg.ModelKeywords {
		keywords[i] = strings.ToLower(kw)
	}

	return &Injector{cfg: cfg, keywords: keywords}, nil
}

// Config returns the effective configuration.
func (i *Injector) Config() Config {
	return i.cfg
}

// PreCall implements hook.PreCallHook. It never fails: ineligible requests and
// requests with an unreadable token limit are returned unchanged. Caller, cache
// and call type are not consulted.
func (i *Injector) PreCall(
	ctx context.Context,
	_ hook.Caller,
	_ hook.Cache,
	req *hook.Request,
	_ hook.CallType,
) (*hook.Request, error) {
	if req == nil || i.cfg.Disabled || !i.eligible(req) {
		return req, nil
	}

	// A limit the caller set but we cannot read is never replaced by a default.
	requested, set, err := req.RequestedMaxTokens()
	if err != nil {
		return req, nil
	}

	var maxTokens, budget int64
	switch i.cfg.Policy {
	case PolicyAdditive:
		maxTokens, budget = i.additive(requested, set)
	default:
		var ok bool
		maxTokens, budget, ok = i.split(requested, set)
		if !ok {
			return req, nil
		}
	}

	thinking, err := enabledThinking(budget)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode thinking config", "error", err)
		return req, nil
	}

	req.SetMaxTokens(maxTokens)
	req.Thinking = thinking

	slog.DebugContext(ctx, "injected thinking",
		"model", req.ModelName(),
		"max_tokens", maxTokens,
		"budget_tokens", budget,
		"policy", string(i.cfg.Policy),
	)

	return req, nil
}

// eligible reports whether req targets a Claude model and leaves reasoning unconfigured.
// Presence of thinking or reasoning_effort counts, regardless of value.
func (i *Injector) eligible(req *hook.Request) bool {
	if req.Thinking != nil || req.ReasoningEffort != nil {
		return false
	}
	model := strings.ToLower(req.ModelName())
	for _, kw := range i.keywords {
		if strings.Contains(model, kw) {
			return true
		}
	}
	return false
}

// split carves the budget out of the requested ceiling.
// Returns false when less than MinBudgetTokens would remain for thinking.
func (i *Injector) split(requested int64, set bool) (maxTokens, budget int64, ok bool) {
	if !set {
		requested = i.cfg.DefaultMaxTokens
	}

	budget = requested - i.cfg.MinOutputTokens
	if budget < i.cfg.MinBudgetTokens {
		return 0, 0, false
	}
	return requested, budget, true
}

// additive grants a fixed budget and grows the ceiling to keep room for it.
func (i *Injector) additive(requested int64, set bool) (maxTokens, budget int64) {
	budget = i.cfg.BudgetTokens

	switch {
	case !set:
		return i.cfg.DefaultMaxTokens, budget
	case requested <= budget:
		return budget + requested, budget
	default:
		// Already exceeds the budget; normalized into max_tokens as-is.
		return requested, budget
	}
}

// enabledThinking encodes an enabled thinking block with the given budget.
func enabledThinking(budget int64) (json.RawMessage, error) {
	param := anthropic.ThinkingConfigParamOfEnabled(budget)
	return json.Marshal(param.OfEnabled)
}
