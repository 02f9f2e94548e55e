package options

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*LLMOptions)(nil)

// LLMOptions configures the external completion endpoint used by the
// analysis pipeline. The endpoint speaks the OpenAI chat-completions
// protocol; BaseURL may point at a proxy.
type LLMOptions struct {
	BaseURL string `json:"base-url" mapstructure:"base-url"`
	APIKey  string `json:"api-key" mapstructure:"api-key"`
	Model   string `json:"model" mapstructure:"model"`

	// Temperature and MaxTokens for every completion call.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max-tokens" mapstructure:"max-tokens"`

	// CallTimeout bounds a single completion call. Total analysis latency is
	// O(nodes x CallTimeout).
	CallTimeout time.Duration `json:"call-timeout" mapstructure:"call-timeout"`
}

func NewLLMOptions() *LLMOptions {
	return &LLMOptions{
		Model:       "gpt-4.1-mini",
		Temperature: 0.2,
		MaxTokens:   512,
		CallTimeout: 60 * time.Second,
	}
}

// ResolvedAPIKey returns the configured key, falling back to the
// OPENAI_API_KEY environment variable.
func (o *LLMOptions) ResolvedAPIKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (o *LLMOptions) Validate() []error {
	errs := []error{}

	if o.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if o.CallTimeout <= 0 {
		errs = append(errs, errors.New("llm.call-timeout must be positive"))
	}

	return errs
}

func (o *LLMOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "llm.base-url", o.BaseURL, "Base URL of the OpenAI-compatible completion endpoint (empty for the default).")
	fs.StringVar(&o.APIKey, "llm.api-key", o.APIKey, "API key for the completion endpoint. Falls back to OPENAI_API_KEY.")
	fs.StringVar(&o.Model, "llm.model", o.Model, "Model name for completion calls.")
	fs.Float64Var(&o.Temperature, "llm.temperature", o.Temperature, "Sampling temperature for completion calls.")
	fs.IntVar(&o.MaxTokens, "llm.max-tokens", o.MaxTokens, "Max tokens per completion call.")
	fs.DurationVar(&o.CallTimeout, "llm.call-timeout", o.CallTimeout, "Hard timeout for a single completion call.")
}
