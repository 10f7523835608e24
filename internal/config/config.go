package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Relay      RelayConfig      `yaml:"relay" mapstructure:"relay"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	LiteMode   LiteModeConfig   `yaml:"litemode" mapstructure:"litemode"`
	Catalog    SourceConfig     `yaml:"catalog" mapstructure:"catalog"`
	Advisor    SourceConfig     `yaml:"advisor" mapstructure:"advisor"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int    `yaml:"port" mapstructure:"port"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	StartupTimeoutSecs  int    `yaml:"startup_timeout_secs" mapstructure:"startup_timeout_secs"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For /
	// X-Real-IP. Leave off unless a proxy overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// LogConfig configures logging. When File is set, JSON logs also go to a
// rotated file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// RelayConfig holds the Telegram lead relay settings.
type RelayConfig struct {
	TelegramToken         string   `yaml:"telegram_token" mapstructure:"telegram_token"`
	ChatID                string   `yaml:"chat_id" mapstructure:"chat_id"`
	BaseURL               string   `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs           int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FallbackPhone         string   `yaml:"fallback_phone" mapstructure:"fallback_phone"`
	AllowedOrigins        []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedOriginPatterns []string `yaml:"allowed_origin_patterns" mapstructure:"allowed_origin_patterns"`
}

// RetryConfig configures relay retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the relay circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RateLimitConfig limits lead submissions per client.
type RateLimitConfig struct {
	PerMinute  int `yaml:"per_minute" mapstructure:"per_minute"`
	Burst      int `yaml:"burst" mapstructure:"burst"`
	MaxClients int `yaml:"max_clients" mapstructure:"max_clients"`
}

// LiteModeConfig holds the slow-connection thresholds and cookie lifetimes.
type LiteModeConfig struct {
	SlowDownlinkMbps float64  `yaml:"slow_downlink_mbps" mapstructure:"slow_downlink_mbps"`
	SlowRTTMs        int      `yaml:"slow_rtt_ms" mapstructure:"slow_rtt_ms"`
	SlowECT          []string `yaml:"slow_ect" mapstructure:"slow_ect"`
	UAPatterns       []string `yaml:"ua_patterns" mapstructure:"ua_patterns"`
	AutoMaxAgeSecs   int      `yaml:"auto_max_age_secs" mapstructure:"auto_max_age_secs"`
	PrefMaxAgeDays   int      `yaml:"pref_max_age_days" mapstructure:"pref_max_age_days"`
	FailsafeSecs     int      `yaml:"failsafe_secs" mapstructure:"failsafe_secs"`
}

// SourceConfig points at an optional external YAML file that replaces the
// compiled-in table.
type SourceConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures operational alerts.
type MonitoringConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ESPASATEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "https://еспасатель.рф")
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.startup_timeout_secs", 60)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	// Empty defaults register the keys so env-only values unmarshal.
	v.SetDefault("relay.telegram_token", "")
	v.SetDefault("relay.chat_id", "")
	v.SetDefault("relay.base_url", "https://api.telegram.org")
	v.SetDefault("relay.timeout_secs", 10)
	v.SetDefault("relay.fallback_phone", "+7 800 123-45-67")
	v.SetDefault("relay.allowed_origins", []string{
		"https://еспасатель.рф",
		"https://www.еспасатель.рф",
		"https://willowy-semolina-1d1e89.netlify.app",
	})
	v.SetDefault("relay.allowed_origin_patterns", []string{
		`^https://[a-z0-9-]+--willowy-semolina-1d1e89\.netlify\.app$`,
		`^http://localhost(:\d+)?$`,
	})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 300)
	v.SetDefault("retry.max_backoff_ms", 3000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("ratelimit.per_minute", 5)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("ratelimit.max_clients", 4096)
	v.SetDefault("litemode.slow_downlink_mbps", 1.5)
	v.SetDefault("litemode.slow_rtt_ms", 800)
	v.SetDefault("litemode.slow_ect", []string{"slow-2g", "2g"})
	v.SetDefault("litemode.ua_patterns", []string{"UCWEB", "UCBrowser", "NetFront", "Opera Mini", "MIDP", "CLDC", "Series60", "SymbOS"})
	v.SetDefault("litemode.auto_max_age_secs", 600)
	v.SetDefault("litemode.pref_max_age_days", 30)
	v.SetDefault("litemode.failsafe_secs", 270)
	v.SetDefault("catalog.path", "")
	v.SetDefault("advisor.path", "")
	v.SetDefault("monitoring.webhook_url", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve" or "offline";
// offline commands never touch the relay.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: invalid server.port %d", c.Server.Port)
		}
		if c.Relay.TelegramToken == "" {
			missing = append(missing, "relay.telegram_token")
		}
		if c.Relay.ChatID == "" {
			missing = append(missing, "relay.chat_id")
		}
		if len(c.Relay.AllowedOrigins) == 0 && len(c.Relay.AllowedOriginPatterns) == 0 {
			missing = append(missing, "relay.allowed_origins")
		}
	case "offline":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if c.LiteMode.SlowDownlinkMbps <= 0 {
		return eris.New("config: litemode.slow_downlink_mbps must be positive")
	}
	if c.LiteMode.SlowRTTMs <= 0 {
		return eris.New("config: litemode.slow_rtt_ms must be positive")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		return eris.Errorf("config: retry.jitter_fraction %.2f out of [0,1]", c.Retry.JitterFraction)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	zap.ReplaceGlobals(logger)

	return nil
}
