package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// dotenvFiles is the search order for local environment overrides, most
// specific first. Missing files are not an error.
var dotenvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads .env.local and .env into the process environment
// before config.Load runs, so ${VAR} expansion and a provider's
// getAPIKeyFromEnv fallback both see values set outside the shell.
// Variables already present in the process environment are left untouched.
func LoadEnvFiles() error {
	for _, file := range dotenvFiles {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
		slog.Debug("config: loaded environment overrides", "file", file)
	}
	return nil
}
