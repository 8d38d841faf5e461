package keystore

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the keyring service name keys are stored under.
const KeyringService = "thinkgate-upstream-key"

// KeyringStore reads a key from the OS-native credential store.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements KeyStore
var _ KeyStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the key from the system keyring. Returns error if not found or empty.
func (k *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := keyring.Get(k.service, k.user)
	if err != nil {
		return "", fmt.Errorf("keyring lookup for service %s, user %s: %w", k.service, k.user, err)
	}
	if key == "" {
		return "", fmt.Errorf("empty key in keyring for service %s, user %s", k.service, k.user)
	}

	return key, nil
}
