package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/florianilch/thinkgate/internal/keystore"
)

// KeyTokenSource presents a stored API key as an oauth2.TokenSource.
// The key is read on first use, so startup performs no I/O and a missing key
// surfaces on the first request instead of preventing the server from starting.
type KeyTokenSource struct {
	store keystore.KeyStore

	mu    sync.Mutex
	token *oauth2.Token
}

// Compile-time check to ensure KeyTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*KeyTokenSource)(nil)

// NewKeyTokenSource creates a KeyTokenSource. No I/O is performed until the first Token call.
func NewKeyTokenSource(store keystore.KeyStore) (*KeyTokenSource, error) {
	if store == nil {
		return nil, fmt.Errorf("missing key store")
	}
	return &KeyTokenSource{store: store}, nil
}

// Token returns the stored key. Failed reads are not cached, so a key that is
// provisioned after startup is picked up by the next request.
func (k *KeyTokenSource) Token() (*oauth2.Token, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token != nil {
		return k.token, nil
	}

	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	key, err := k.store.Read(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream key: %w", err)
	}

	// API keys never expire; a zero Expiry keeps the token valid forever.
	k.token = &oauth2.Token{AccessToken: key, TokenType: "Bearer"}
	return k.token, nil
}
