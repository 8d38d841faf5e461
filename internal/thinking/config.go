package thinking

import (
	"errors"
	"fmt"
)

// Policy selects how the thinking budget is derived from the caller's token ceiling.
type Policy string

const (
	// PolicySplit carves the thinking budget out of the caller's ceiling, keeping
	// at least MinOutputTokens for visible output. Requests whose ceiling cannot fit
	// MinBudgetTokens of thinking are left unchanged.
	PolicySplit Policy = "split"
	// PolicyAdditive grants a fixed BudgetTokens of thinking on top of the caller's
	// ceiling, so visible output is never shrunk.
	PolicyAdditive Policy = "additive"
)

// Default configuration values
const (
	DefaultPolicy           = PolicySplit
	DefaultMinOutputTokens  = 4096
	DefaultMinBudgetTokens  = 1024
	DefaultBudgetTokens     = 10000
	DefaultDefaultMaxTokens = 16000
)

// DefaultModelKeywords match Anthropic Claude-family model identifiers.
var DefaultModelKeywords = []string{"claude", "anthropic"}

// Config holds the injector's policy knobs.
type Config struct {
	// Disabled turns the injector into a pass-through.
	Disabled bool   `json:"disabled"`
	Policy   Policy `json:"policy" validate:"omitempty,oneof=split additive"`

	// ModelKeywords are matched case-insensitively as substrings of the model name.
	ModelKeywords []string `json:"model_keywords"`

	// Split policy.
	MinOutputTokens int64 `json:"min_output_tokens" validate:"gte=0"`
	MinBudgetTokens int64 `json:"min_budget_tokens" validate:"gte=0"`

	// Additive policy.
	BudgetTokens int64 `json:"budget_tokens" validate:"gte=0"`

	// DefaultMaxTokens is the ceiling assumed when the request sets none.
	DefaultMaxTokens int64 `json:"default_max_tokens" validate:"gte=0"`
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Policy == "" {
		c.Policy = DefaultPolicy
	}
	if len(c.ModelKeywords) == 0 {
		c.ModelKeywords = append([]string(nil), DefaultModelKeywords...)
	}
	if c.MinOutputTokens == 0 {
		c.MinOutputTokens = DefaultMinOutputTokens
	}
	if c.MinBudgetTokens == 0 {
		c.MinBudgetTokens = DefaultMinBudgetTokens
	}
	if c.BudgetTokens == 0 {
		c.BudgetTokens = DefaultBudgetTokens
	}
	if c.DefaultMaxTokens == 0 {
		c.DefaultMaxTokens = DefaultDefaultMaxTokens
	}
}

// Validate checks the fields used by the selected policy.
func (c *Config) Validate() error {
	if len(c.ModelKeywords) == 0 {
		return errors.New("at least one model keyword required")
	}
	for _, kw := range c.ModelKeywords {
		if kw == "" {
			return errors.New("model keywords cannot be empty")
		}
	}
	if c.DefaultMaxTokens <= 0 {
		return fmt.Errorf("default_max_tokens must be positive, got %d", c.DefaultMaxTokens)
	}

	switch c.Policy {
	case PolicySplit:
		if c.MinOutputTokens <= 0 {
			return fmt.Errorf("min_output_tokens must be positive, got %d", c.MinOutputTokens)
		}
		if c.MinBudgetTokens <= 0 {
			return fmt.Errorf("min_budget_tokens must be positive, got %d", c.MinBudgetTokens)
		}
	case PolicyAdditive:
		if c.BudgetTokens <= 0 {
			return fmt.Errorf("budget_tokens must be positive, got %d", c.BudgetTokens)
		}
		// Anthropic rejects requests where max_tokens does not exceed budget_tokens
		if c.DefaultMaxTokens <= c.BudgetTokens {
			return fmt.Errorf("default_max_tokens (%d) must exceed budget_tokens (%d)", c.DefaultMaxTokens, c.BudgetTokens)
		}
	default:
		return fmt.Errorf("unsupported policy: %q", c.Policy)
	}

	return nil
}
