package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/akeren/go-waitlist/internal/log"
	"github.com/joho/godotenv"
)

const AppEnvKey = "APP_ENV"

// InitializeEnvFile loads ENV_FILE (default .env) without overriding variables
// already present in the process environment.
func InitializeEnvFile(logger *log.Logger) {
	if os.Getenv("SKIP_DOTENV") == "true" {
		logger.Info("Skipping .env file load (SKIP_DOTENV=true)")
		return
	}

	envFile := GetValueFromEnvironmentVariable("ENV_FILE", ".env")

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn("No env file found or failed to load it", "file", envFile, "error", err.Error())
		return
	}

	logger.Info("Environment variables loaded from env file", "file", envFile)
}

func GetValueFromEnvironmentVariable(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func GetAppEnv() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(AppEnvKey)))
}

// EnvironmentName is APP_ENV for telemetry labels, "development" when unset.
func EnvironmentName() string {
	if env := GetAppEnv(); env != "" {
		return env
	}
	return "development"
}

// IsDevelopmentEnv reports whether appEnv names a non-production environment.
func IsDevelopmentEnv(appEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case "", "dev", "development", "local", "test", "testing":
		return true
	default:
		return false
	}
}

func ValidateAutoMigrateAllowed(appEnv string) error {
	if IsDevelopmentEnv(appEnv) {
		return nil
	}

	env := strings.ToLower(strings.TrimSpace(appEnv))
	return fmt.Errorf("--auto-migrate is not allowed when %s=%q (allowed: \"\", dev, development, local, test, testing)", AppEnvKey, env)
}
