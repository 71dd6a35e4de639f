// Package config loads application configuration from environment
// variables and validates it before anything else starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DBPath      string `envconfig:"DB_PATH" default:"expedition.db"`

	// Ops server (health + metrics)
	OpsListenAddr string `envconfig:"OPS_LISTEN_ADDR" default:":8090"`

	// Providers
	Provider         string `envconfig:"PROVIDER" default:"gateway"`  // primary: "gateway" or "vendor"
	FallbackProvider string `envconfig:"FALLBACK_PROVIDER"`           // optional secondary for failover
	GatewayEndpoint  string `envconfig:"GATEWAY_ENDPOINT" default:"http://localhost:4000/v1/chat/completions"`
	GatewayAPIKey    string `envconfig:"GATEWAY_API_KEY"`
	VendorEndpoint   string `envconfig:"VENDOR_ENDPOINT" default:"https://api.anthropic.com/v1/chat/completions"`
	VendorAPIKey     string `envconfig:"VENDOR_API_KEY"`

	// Model and request shape
	Model             string        `envconfig:"MODEL" default:"anthropic/claude-sonnet-4"`
	MaxTokens         int           `envconfig:"MAX_TOKENS" default:"8192"`
	Temperature       float64       `envconfig:"TEMPERATURE" default:"0.7"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"300s"`
	ExtendedReasoning bool          `envconfig:"EXTENDED_REASONING" default:"false"`
	ReasoningBudget   int           `envconfig:"REASONING_BUDGET" default:"4096"`

	// Journey behavior
	MaxDepth          int    `envconfig:"MAX_DEPTH" default:"0"` // 0 = unbounded
	SaveArtifacts     bool   `envconfig:"SAVE_ARTIFACTS" default:"true"`
	ContinueOnFailure bool   `envconfig:"CONTINUE_ON_FAILURE" default:"true"`
	TemplateFile      string `envconfig:"TEMPLATE_FILE"` // optional YAML stage-prompt overrides

	// Synthesis
	EnableSynthesis    bool   `envconfig:"ENABLE_SYNTHESIS" default:"true"`
	SynthesisInterval  int    `envconfig:"SYNTHESIS_INTERVAL" default:"3"`
	SynthesisModel     string `envconfig:"SYNTHESIS_MODEL"` // defaults to MODEL when empty
	SynthesisMaxTokens int    `envconfig:"SYNTHESIS_MAX_TOKENS" default:"4096"`

	// Slack notifications (optional)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel  string `envconfig:"SLACK_CHANNEL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("EXPEDITION", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would only fail
// later at request time. Called once at startup.
func (c *Config) Validate() error {
	if !validProvider(c.Provider) {
		return fmt.Errorf("invalid provider %q, expected gateway or vendor", c.Provider)
	}
	if c.FallbackProvider != "" {
		if !validProvider(c.FallbackProvider) {
			return fmt.Errorf("invalid fallback provider %q, expected gateway or vendor", c.FallbackProvider)
		}
		if strings.EqualFold(c.FallbackProvider, c.Provider) {
			return fmt.Errorf("fallback provider must differ from primary provider %q", c.Provider)
		}
	}
	if c.Provider == "gateway" && c.GatewayAPIKey == "" {
		return fmt.Errorf("GATEWAY_API_KEY is required when provider is gateway")
	}
	if c.Provider == "vendor" && c.VendorAPIKey == "" {
		return fmt.Errorf("VENDOR_API_KEY is required when provider is vendor")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("MAX_DEPTH must be >= 0, got %d", c.MaxDepth)
	}
	if c.EnableSynthesis && c.SynthesisInterval < 1 {
		return fmt.Errorf("SYNTHESIS_INTERVAL must be >= 1, got %d", c.SynthesisInterval)
	}
	if c.ReasoningBudget < 0 {
		return fmt.Errorf("REASONING_BUDGET must be >= 0, got %d", c.ReasoningBudget)
	}
	if c.SlackBotToken != "" && c.SlackChannel == "" {
		return fmt.Errorf("SLACK_CHANNEL is required when SLACK_BOT_TOKEN is set")
	}
	return nil
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// EffectiveSynthesisModel returns the synthesis model, falling back to
// the main model when unset.
func (c *Config) EffectiveSynthesisModel() string {
	if c.SynthesisModel != "" {
		return c.SynthesisModel
	}
	return c.Model
}

func validProvider(p string) bool {
	return p == "gateway" || p == "vendor"
}
