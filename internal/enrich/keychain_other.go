//go:build !darwin

package enrich

import "errors"

var errNoKeychain = errors.New("keychain not available on this platform")

func loadFromKeychain(service, account string) ([]byte, error) {
	return nil, ErrNoCredential
}

func saveToKeychain(service, account string, data []byte) error {
	return errNoKeychain
}
