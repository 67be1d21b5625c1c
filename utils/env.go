// kotatsu/utils/env.go
package utils

import (
	"os"
	"strings"
)

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SplitPairs parses "key=value" pairs separated by semicolons. Entries
// without an "=" or with an empty key are skipped.
func SplitPairs(s string) [][2]string {
	var pairs [][2]string
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs
}
