package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("FINSIGHT_SERVER_PORT")
		os.Unsetenv("FINSIGHT_SERVER_ENVIRONMENT")
		os.Unsetenv("FINSIGHT_OCR_WORKER_BIN")
		os.Unsetenv("FINSIGHT_OCR_PRIMARY_TIMEOUT")
		os.Unsetenv("FINSIGHT_OCR_RETRY_BACKOFF")
		os.Unsetenv("FINSIGHT_OCR_REMOTE_BASE_URL")
		os.Unsetenv("FINSIGHT_OCR_REMOTE_API_KEY")
		os.Unsetenv("FINSIGHT_CLASSIFIER_PROVIDER")
		os.Unsetenv("FINSIGHT_CLASSIFIER_BASE_URL")
		os.Unsetenv("FINSIGHT_CLASSIFIER_API_KEY")
		os.Unsetenv("FINSIGHT_CLASSIFIER_MODEL")
		os.Unsetenv("FINSIGHT_CLASSIFIER_AUTO_ACCEPT_THRESHOLD")
		os.Unsetenv("FINSIGHT_PARSER_DEFAULT_CURRENCY")
		os.Unsetenv("FINSIGHT_CACHE_TTL")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.OCR.PrimaryTimeout != 8*time.Second {
			t.Errorf("OCR.PrimaryTimeout = %v, want 8s", cfg.OCR.PrimaryTimeout)
		}
		if cfg.OCR.RetryBackoff != 500*time.Millisecond {
			t.Errorf("OCR.RetryBackoff = %v, want 500ms", cfg.OCR.RetryBackoff)
		}
		if cfg.OCR.RemoteTimeout != 30*time.Second {
			t.Errorf("OCR.RemoteTimeout = %v, want 30s", cfg.OCR.RemoteTimeout)
		}
		if cfg.Classifier.Provider != "rules" {
			t.Errorf("Classifier.Provider = %s, want rules", cfg.Classifier.Provider)
		}
		if cfg.Classifier.RemoteTimeout != 2*time.Second {
			t.Errorf("Classifier.RemoteTimeout = %v, want 2s", cfg.Classifier.RemoteTimeout)
		}
		if cfg.Classifier.AutoAcceptThreshold != 0.8 {
			t.Errorf("Classifier.AutoAcceptThreshold = %f, want 0.8", cfg.Classifier.AutoAcceptThreshold)
		}
		if cfg.Parser.DefaultCurrency != "USD" {
			t.Errorf("Parser.DefaultCurrency = %s, want USD", cfg.Parser.DefaultCurrency)
		}
		if cfg.Cache.TTL != 720*time.Hour {
			t.Errorf("Cache.TTL = %v, want 720h", cfg.Cache.TTL)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("FINSIGHT_SERVER_PORT", "9090")
		os.Setenv("FINSIGHT_SERVER_ENVIRONMENT", "production")
		os.Setenv("FINSIGHT_OCR_PRIMARY_TIMEOUT", "12s")
		os.Setenv("FINSIGHT_OCR_REMOTE_BASE_URL", "https://ocr.example.com")
		os.Setenv("FINSIGHT_CLASSIFIER_PROVIDER", "chat")
		os.Setenv("FINSIGHT_CLASSIFIER_BASE_URL", "https://llm.example.com")
		os.Setenv("FINSIGHT_CLASSIFIER_API_KEY", "custom-api-key")
		os.Setenv("FINSIGHT_CACHE_TTL", "24h")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.OCR.PrimaryTimeout != 12*time.Second {
			t.Errorf("OCR.PrimaryTimeout = %v, want 12s", cfg.OCR.PrimaryTimeout)
		}
		if cfg.OCR.RemoteBaseURL != "https://ocr.example.com" {
			t.Errorf("OCR.RemoteBaseURL = %s, want https://ocr.example.com", cfg.OCR.RemoteBaseURL)
		}
		if cfg.Classifier.Provider != "chat" {
			t.Errorf("Classifier.Provider = %s, want chat", cfg.Classifier.Provider)
		}
		if cfg.Classifier.APIKey != "custom-api-key" {
			t.Errorf("Classifier.APIKey = %s, want custom-api-key", cfg.Classifier.APIKey)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
	})

	t.Run("fails validation when chat provider has no API key", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("FINSIGHT_CLASSIFIER_PROVIDER", "chat")
		os.Setenv("FINSIGHT_CLASSIFIER_BASE_URL", "https://llm.example.com")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing API key")
		}
	})

	t.Run("fails validation for unknown classifier provider", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("FINSIGHT_CLASSIFIER_PROVIDER", "invalid")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for unknown provider")
		}
	})

	t.Run("fails validation when gemini provider has no API key", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("FINSIGHT_CLASSIFIER_PROVIDER", "gemini")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing API key")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		err := loadEnvFile()
		if err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file
		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		// Clear any existing values
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}

		// Cleanup
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")
	})

	t.Run("skips empty lines and comments", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file with various formats
		envContent := `
# This is a comment
   # This is also a comment

TEST_SKIP_1=value1

TEST_SKIP_2=value2
# TEST_COMMENTED=should_not_load
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
		os.Unsetenv("TEST_COMMENTED")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_SKIP_1") != "value1" {
			t.Errorf("TEST_SKIP_1 not loaded correctly")
		}
		if os.Getenv("TEST_SKIP_2") != "value2" {
			t.Errorf("TEST_SKIP_2 not loaded correctly")
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Set existing env var
		os.Setenv("TEST_OVERRIDE", "existing-value")

		// Create .env file that tries to override
		envContent := "TEST_OVERRIDE=new-value"
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		// Should still have original value
		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}

		os.Unsetenv("TEST_OVERRIDE")
	})
}

func TestValidate(t *testing.T) {
	t.Run("validates successfully with rules provider", func(t *testing.T) {
		cfg := &Config{
			OCR: OCRConfig{
				PrimaryTimeout: 8 * time.Second,
			},
			Classifier: ClassifierConfig{
				Provider:            "rules",
				AutoAcceptThreshold: 0.8,
			},
		}

		err := validate(cfg)
		if err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	t.Run("validates chat provider with key and base URL", func(t *testing.T) {
		cfg := &Config{
			OCR: OCRConfig{
				PrimaryTimeout: 8 * time.Second,
			},
			Classifier: ClassifierConfig{
				Provider:            "chat",
				BaseURL:             "https://llm.example.com",
				APIKey:              "test-key",
				AutoAcceptThreshold: 0.8,
			},
		}

		err := validate(cfg)
		if err != nil {
			t.Errorf("validate() error = %v, want nil for valid chat config", err)
		}
	})

	t.Run("fails chat provider without base URL", func(t *testing.T) {
		cfg := &Config{
			OCR: OCRConfig{
				PrimaryTimeout: 8 * time.Second,
			},
			Classifier: ClassifierConfig{
				Provider:            "chat",
				APIKey:              "test-key",
				AutoAcceptThreshold: 0.8,
			},
		}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for chat without base URL")
		}
	})

	t.Run("fails for threshold outside [0,1]", func(t *testing.T) {
		cfg := &Config{
			OCR: OCRConfig{
				PrimaryTimeout: 8 * time.Second,
			},
			Classifier: ClassifierConfig{
				Provider:            "rules",
				AutoAcceptThreshold: 1.5,
			},
		}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for threshold out of range")
		}
	})

	t.Run("fails for non-positive primary timeout", func(t *testing.T) {
		cfg := &Config{
			OCR: OCRConfig{
				PrimaryTimeout: 0,
			},
			Classifier: ClassifierConfig{
				Provider:            "rules",
				AutoAcceptThreshold: 0.8,
			},
		}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for zero timeout")
		}
	})
}
