package keystore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore reads a key from an environment variable.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements KeyStore
var _ KeyStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	return newEnvStore(envKey, os.LookupEnv)
}

func newEnvStore(envKey string, lookup func(string) (string, bool)) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}
	if _, exists := lookup(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}
	return &EnvStore{envKey: envKey, lookup: lookup}, nil
}

// Read returns the value of the environment variable. Returns error if empty.
func (e *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, _ := e.lookup(e.envKey)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is empty", e.envKey)
	}
	return key, nil
}
