package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	TextModel  string `yaml:"text_model" mapstructure:"text_model"`
	ImageModel string `yaml:"image_model" mapstructure:"image_model"`
}

// PipelineConfig configures analysis retry behavior.
type PipelineConfig struct {
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ASSEMBLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("gemini.text_model", "gemini-2.5-flash")
	v.SetDefault("gemini.image_model", "gemini-2.5-flash-image-preview")
	v.SetDefault("pipeline.max_retries", 5)
	v.SetDefault("pipeline.base_delay_ms", 2000)
	v.SetDefault("pipeline.max_delay_ms", 60000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration required for the given command mode.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.Driver != "sqlite" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}
	requireGemini := func() {
		if c.Gemini.Key == "" {
			missing = append(missing, "gemini.key is required")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		requireGemini()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			missing = append(missing, "server.max_upload_mb must be > 0")
		}
	case "analyze":
		requireStore()
		requireGemini()
	case "migrate", "chats":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	// The retry executor treats a zero budget as unset, so 0 is rejected
	// here rather than silently becoming the default.
	if c.Pipeline.MaxRetries < 1 || c.Pipeline.MaxRetries > 10 {
		missing = append(missing, "pipeline.max_retries must be between 1 and 10")
	}
	if c.Pipeline.BaseDelayMS <= 0 || c.Pipeline.MaxDelayMS < c.Pipeline.BaseDelayMS {
		missing = append(missing, "pipeline delays must satisfy 0 < base_delay_ms <= max_delay_ms")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
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
	zap.ReplaceGlobals(logger)

	return nil
}
