// Package thinking injects Anthropic extended-thinking parameters into Claude
// requests that did not ask for reasoning explicitly.
//
// The Injector is a hook.PreCallHook. A request is eligible when its model name
// contains one of the configured keywords ("claude", "anthropic") and neither
// "thinking" nor "reasoning_effort" is present. Anthropic requires max_tokens to
// exceed thinking.budget_tokens, so every injection also writes max_tokens.
//
// # Policies
//
// PolicySplit (default) takes the caller's ceiling, or DefaultMaxTokens, and
// reserves MinOutputTokens of it for visible output:
//
//	max_tokens=8000  → max_tokens=8000,  budget_tokens=3904
//	(unset)          → max_tokens=16000, budget_tokens=11904
//	max_tokens=4500  → unchanged (404 < MinBudgetTokens)
//
// PolicyAdditive grants a fixed BudgetTokens on top of the caller's ceiling:
//
//	max_completion_tokens=5000 → max_tokens=15000, budget_tokens=10000
//	max_tokens=20000           → max_tokens=20000, budget_tokens=10000
//	(unset)                    → max_tokens=16000, budget_tokens=10000
package thinking
