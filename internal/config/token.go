package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureAPIToken returns the admin API bearer token, generating and
// persisting a new one under dataDir on first run. The FOLIO_API_TOKEN
// environment variable overrides the stored token.
func EnsureAPIToken(dataDir string) (string, error) {
	if tok := strings.TrimSpace(os.Getenv("FOLIO_API_TOKEN")); tok != "" {
		return tok, nil
	}

	path := filepath.Join(dataDir, "api_token")
	if data, err := os.ReadFile(path); err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	tok := hex.EncodeToString(buf)

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting api token: %w", err)
	}
	return tok, nil
}
