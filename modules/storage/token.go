package storage

import "log"

// TokenStore persists the backend session token across restarts. It satisfies
// the transport's token source: reads fail soft to an empty token, and a 401
// from the backend purges the stored value.
type TokenStore struct {
	store *Store
}

// NewTokenStore creates a TokenStore on store.
func NewTokenStore(store *Store) *TokenStore {
	return &TokenStore{store: store}
}

// Token returns the stored session token, or empty when none is installed.
func (t *TokenStore) Token() string {
	value, ok, err := t.store.Get(KeyAuthToken)
	if err != nil {
		log.Printf("[storage] Token read error: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(value)
}

// SetToken installs a session token.
func (t *TokenStore) SetToken(token string) error {
	return t.store.Put(KeyAuthToken, []byte(token))
}

// ClearToken removes the stored session token.
func (t *TokenStore) ClearToken() {
	if err := t.store.Delete(KeyAuthToken); err != nil {
		log.Printf("[storage] Token clear error: %v", err)
	}
}
