package keystore

import "context"

// KeyStore reads an API key from storage.
type KeyStore interface {
	// Read returns the stored key. Returns error if the key is missing or empty.
	Read(ctx context.Context) (string, error)
}
