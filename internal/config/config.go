package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "ROUNDTABLE"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "roundtable.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 60
	defaultMinutesModel  = "gpt-4o"
	defaultKeywordsModel = "gpt-4o-mini"
	defaultSeoulBaseURL  = "http://openapi.seoul.go.kr:8088"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	SigningSecret      string
	TokenTTL           time.Duration
	OpenAIAPIKey       string
	MinutesModel       string
	KeywordsModel      string
	SeoulAPIKey        string
	SeoulBaseURL       string
	IncrementalMinutes bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("openai.minutes_model", defaultMinutesModel)
	configViper.SetDefault("openai.keywords_model", defaultKeywordsModel)
	configViper.SetDefault("seoul.base_url", defaultSeoulBaseURL)
	configViper.SetDefault("minutes.incremental", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		TokenTTL:           time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		OpenAIAPIKey:       configViper.GetString("openai.api_key"),
		MinutesModel:       configViper.GetString("openai.minutes_model"),
		KeywordsModel:      configViper.GetString("openai.keywords_model"),
		SeoulAPIKey:        configViper.GetString("seoul.api_key"),
		SeoulBaseURL:       configViper.GetString("seoul.base_url"),
		IncrementalMinutes: configViper.GetBool("minutes.incremental"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}
