package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/biz"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// EnvPrefix prefixes environment overrides, e.g. SEARCH_SERVER_PORT
const EnvPrefix = "SEARCH"

type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Log      logger.Config           `mapstructure:"log"`
	Backends BackendsConfig          `mapstructure:"backends"`
	Dispatch biz.Config              `mapstructure:"dispatch"`
	Breaker  transport.BreakerConfig `mapstructure:"breaker"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BackendsConfig struct {
	Direct BackendConfig `mapstructure:"direct"`
	Relay  BackendConfig `mapstructure:"relay"`
}

// BackendConfig configures one backend. The secret itself never lives in
// the config file; CredentialKey names the environment variable holding it.
type BackendConfig struct {
	BaseURL       string            `mapstructure:"base_url"`
	Model         string            `mapstructure:"model"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	CredentialKey string            `mapstructure:"credential_key"`
	Headers       map[string]string `mapstructure:"headers"`
}

// Transport returns the transport config for this backend with apiKey filled in
func (c BackendConfig) Transport(apiKey string) *transport.Config {
	return &transport.Config{
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
		APIKey:  apiKey,
		Headers: c.Headers,
	}
}

// LoadConfig reads the config file at path, if any, over the built-in
// defaults and applies SEARCH_* environment overrides
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values viper cannot type-check
func (c *Config) Validate() error {
	if _, ok := types.ParseMode(c.Dispatch.Mode); !ok {
		return fmt.Errorf("dispatch.mode: unknown mode %q", c.Dispatch.Mode)
	}
	policy, ok := types.ParseOptionPolicy(string(c.Dispatch.Policy))
	if !ok {
		return fmt.Errorf("dispatch.unsupported_option_policy: unknown policy %q", c.Dispatch.Policy)
	}
	c.Dispatch.Policy = policy
	if c.Dispatch.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("dispatch.max_attachment_bytes must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return c.Log.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enablecaller", lc.EnableCaller)
	v.SetDefault("log.enablestacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.maxsize", lc.File.MaxSize)
	v.SetDefault("log.file.maxage", lc.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	v.SetDefault("backends.direct.base_url", transport.DefaultDirectBaseURL)
	v.SetDefault("backends.direct.model", transport.DefaultDirectModel)
	v.SetDefault("backends.direct.timeout", 300*time.Second)
	v.SetDefault("backends.direct.credential_key", "PERPLEXITY_API_KEY")
	v.SetDefault("backends.relay.base_url", transport.DefaultRelayBaseURL)
	v.SetDefault("backends.relay.model", transport.DefaultRelayModel)
	v.SetDefault("backends.relay.timeout", 300*time.Second)
	v.SetDefault("backends.relay.credential_key", "OPENROUTER_API_KEY")

	dc := biz.DefaultConfig()
	v.SetDefault("dispatch.mode", dc.Mode)
	v.SetDefault("dispatch.unsupported_option_policy", string(dc.Policy))
	v.SetDefault("dispatch.failover", dc.Failover)
	v.SetDefault("dispatch.max_attachment_bytes", dc.MaxAttachmentBytes)
	v.SetDefault("dispatch.max_tokens", dc.MaxTokens)
	v.SetDefault("dispatch.temperature", dc.Temperature)

	bc := transport.DefaultBreakerConfig()
	v.SetDefault("breaker.enabled", bc.Enabled)
	v.SetDefault("breaker.max_failures", bc.MaxFailures)
	v.SetDefault("breaker.timeout", bc.Timeout)
	v.SetDefault("breaker.interval", bc.Interval)
}
