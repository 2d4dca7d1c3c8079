//go:build darwin

package enrich

import (
	"fmt"

	"github.com/keybase/go-keychain"
)

func loadFromKeychain(service, account string) ([]byte, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return nil, fmt.Errorf("keychain query %s: %w", service, err)
	}
	if len(results) == 0 {
		return nil, ErrNoCredential
	}
	return results[0].Data, nil
}

// saveToKeychain replaces any existing item for service/account
func saveToKeychain(service, account string, data []byte) error {
	del := keychain.NewItem()
	del.SetSecClass(keychain.SecClassGenericPassword)
	del.SetService(service)
	del.SetAccount(account)
	if err := keychain.DeleteItem(del); err != nil && err != keychain.ErrorItemNotFound {
		return fmt.Errorf("keychain delete %s: %w", service, err)
	}

	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(service)
	item.SetAccount(account)
	item.SetLabel("spiegel LLM API key")
	item.SetData(data)
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	if err := keychain.AddItem(item); err != nil {
		return fmt.Errorf("keychain save %s: %w", service, err)
	}
	return nil
}
