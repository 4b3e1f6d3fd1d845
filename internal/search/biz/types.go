package biz

import (
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/request"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// SearchRequest is one dispatch call
type SearchRequest struct {
	Query     types.SearchQuery
	Preset    string
	Shortcuts types.Shortcuts

	// Options holds only the values the caller set explicitly
	Options types.Options

	// Mode is "auto", "direct" or "relay"; empty uses the configured default
	Mode string

	// Policy overrides the configured unsupported-option policy when set
	Policy types.OptionPolicy

	// RequestID is generated when empty
	RequestID string
}

// Config holds dispatch defaults
type Config struct {
	Mode               string             `mapstructure:"mode" yaml:"mode"`
	Policy             types.OptionPolicy `mapstructure:"unsupported_option_policy" yaml:"unsupported_option_policy"`
	Failover           bool               `mapstructure:"failover" yaml:"failover"`
	MaxAttachmentBytes int64              `mapstructure:"max_attachment_bytes" yaml:"max_attachment_bytes"`
	MaxTokens          int                `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature        float64            `mapstructure:"temperature" yaml:"temperature"`
}

// DefaultConfig returns the dispatch defaults
func DefaultConfig() Config {
	return Config{
		Mode:               string(types.ModeAuto),
		Policy:             types.PolicyStrict,
		Failover:           true,
		MaxAttachmentBytes: request.DefaultMaxAttachmentBytes,
		MaxTokens:          1024,
		Temperature:        0.2,
	}
}
