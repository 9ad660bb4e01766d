package config

import (
	"os"
	"strings"
)

// GetEnv retrieves an environment variable value.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
//
// If both are set, the file takes precedence. This allows local development
// with direct values while production uses Docker secrets.
//
// The file contents are trimmed of leading/trailing whitespace.
func GetEnvOrFile(directKey, fileKey string) string {
	// Check for file-based secret first (Docker secrets pattern)
	if filePath := os.Getenv(fileKey); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
		// If file read fails, fall through to direct value
	}

	return os.Getenv(directKey)
}

// getEnvWithFileFallback retrieves a value supporting the _FILE suffix pattern.
// Given a base key like "GLOBAL_KEY", it checks:
//  1. GLOBAL_KEY_FILE - reads file contents if set
//  2. GLOBAL_KEY - returns direct value if set
func getEnvWithFileFallback(prefix, key string) string {
	return GetEnvOrFile(prefix+key, prefix+key+"_FILE")
}
