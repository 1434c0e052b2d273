package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: the file named
// by envName_FILE wins over envName itself. File contents are trimmed.
// Neither being set yields an empty secret.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// RedisPassword resolves the redis password from REDIS_PASSWORD(_FILE).
func (d DatabaseConfig) RedisPassword() (string, error) {
	return ResolveSecret("REDIS_PASSWORD")
}
