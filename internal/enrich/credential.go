package enrich

import (
	"errors"
	"os"

	"github.com/mindmorass/spiegel/internal/settings"
)

// ErrNoCredential means no keychain item exists
var ErrNoCredential = errors.New("no credential stored")

const (
	// KeychainService names the keychain item holding the API key
	KeychainService = "com.spiegel.llm"

	// KeychainAccount is the account of that item
	KeychainAccount = "api-key"

	// EnvAPIKey is consulted when no key is stored in settings
	EnvAPIKey = "OPENAI_API_KEY"
)

// SettingsReader is the part of the settings cache enrichment needs
type SettingsReader interface {
	Get(key string) (string, bool)
}

// resolveAPIKey returns the first credential found in settings, the
// environment and the keychain, or "" when there is none
func resolveAPIKey(s SettingsReader) string {
	if s != nil {
		if v, ok := s.Get(settings.KeyLLMAPIKey); ok && v != "" {
			return v
		}
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v
	}
	if data, err := loadFromKeychain(KeychainService, KeychainAccount); err == nil && len(data) > 0 {
		return string(data)
	}
	return ""
}

// StoreAPIKey saves the key in the OS keychain where one exists
func StoreAPIKey(key string) error {
	return saveToKeychain(KeychainService, KeychainAccount, []byte(key))
}
