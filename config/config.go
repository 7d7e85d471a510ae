package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	OCR        OCRConfig
	Classifier ClassifierConfig
	Parser     ParserConfig
	Cache      CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OCRConfig holds text-extraction configuration
type OCRConfig struct {
	WorkerBin        string        `mapstructure:"worker_bin"`
	PrimaryTimeout   time.Duration `mapstructure:"primary_timeout"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	PassthroughBytes int64         `mapstructure:"passthrough_bytes"`
	MaxEdge          int           `mapstructure:"max_edge"`
	RemoteBaseURL    string        `mapstructure:"remote_base_url"`
	RemoteAPIKey     string        `mapstructure:"remote_api_key"`
	RemoteTimeout    time.Duration `mapstructure:"remote_timeout"`
	RemoteMaxPayload int           `mapstructure:"remote_max_payload"`
}

// ClassifierConfig holds category-classification configuration
type ClassifierConfig struct {
	Provider            string        `mapstructure:"provider"` // "rules", "chat" or "gemini"
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
	AutoAcceptThreshold float64       `mapstructure:"auto_accept_threshold"`
}

// ParserConfig holds receipt-parsing configuration
type ParserConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

// CacheConfig holds classification-cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/finsight/")

	v.SetEnvPrefix("FINSIGHT")
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads variables from a local .env file if one exists.
// Existing environment variables are never overridden.
func loadEnvFile() error {
	file, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// OCR defaults; the primary deadline and backoff were tuned empirically
	v.SetDefault("ocr.worker_bin", "ocr-worker")
	v.SetDefault("ocr.primary_timeout", "8s")
	v.SetDefault("ocr.retry_backoff", "500ms")
	v.SetDefault("ocr.passthrough_bytes", 1<<20)
	v.SetDefault("ocr.max_edge", 1600)
	v.SetDefault("ocr.remote_timeout", "30s")
	v.SetDefault("ocr.remote_max_payload", 4<<20)

	// Classifier defaults
	// Model defaults are per provider; an empty value lets each client
	// pick its own.
	v.SetDefault("classifier.provider", "rules")
	v.SetDefault("classifier.model", "")
	v.SetDefault("classifier.remote_timeout", "2s")
	v.SetDefault("classifier.auto_accept_threshold", 0.8)

	// Parser defaults
	v.SetDefault("parser.default_currency", "USD")

	// Cache defaults
	v.SetDefault("cache.ttl", "720h") // 30 days
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Classifier.Provider {
	case "rules":
	case "chat":
		if config.Classifier.APIKey == "" {
			return fmt.Errorf("classifier API key is required for the chat provider (set FINSIGHT_CLASSIFIER_API_KEY)")
		}
		if config.Classifier.BaseURL == "" {
			return fmt.Errorf("classifier base URL is required for the chat provider")
		}
	case "gemini":
		if config.Classifier.APIKey == "" {
			return fmt.Errorf("classifier API key is required for the gemini provider (set FINSIGHT_CLASSIFIER_API_KEY)")
		}
	default:
		return fmt.Errorf("classifier provider must be 'rules', 'chat' or 'gemini', got: %s", config.Classifier.Provider)
	}

	if config.Classifier.AutoAcceptThreshold < 0 || config.Classifier.AutoAcceptThreshold > 1 {
		return fmt.Errorf("auto accept threshold must be in [0,1], got: %f", config.Classifier.AutoAcceptThreshold)
	}

	if config.OCR.PrimaryTimeout <= 0 {
		return fmt.Errorf("OCR primary timeout must be positive, got: %s", config.OCR.PrimaryTimeout)
	}

	return nil
}
