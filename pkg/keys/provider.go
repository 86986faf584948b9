// Package keys supplies HMAC signing material to the authorizer and
// executor behind a provider interface, so the key can be rotated or
// sourced from a secret manager without touching gate code.
//
// Lookup by key_id is what lets an authorization signed under a
// since-retired key still verify during its lease window.
package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrKeyNotFound = errors.New("keys: key not found")

// Key is an HMAC key identity plus secret bytes. The secret never
// appears in logs or signatures; only KeyID travels with the
// authorization.
type Key struct {
	ID     string
	Secret []byte
}

// Provider resolves signing keys.
type Provider interface {
	// Active returns the key new authorizations are signed with.
	Active() (Key, error)
	// Lookup returns the key for a key_id carried in a signature,
	// including retired keys still needed for verification.
	Lookup(keyID string) (Key, error)
}

// StaticProvider holds a fixed key set with one active key.
type StaticProvider struct {
	mu       sync.RWMutex
	activeID string
	keys     map[string][]byte
}

// NewStaticProvider creates a provider with a single active key.
func NewStaticProvider(keyID string, secret []byte) (*StaticProvider, error) {
	if keyID == "" {
		return nil, errors.New("keys: key id required")
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("keys: secret too short (%d bytes, need >= 16)", len(secret))
	}
	return &StaticProvider{
		activeID: keyID,
		keys:     map[string][]byte{keyID: secret},
	}, nil
}

func (p *StaticProvider) Active() (Key, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Key{ID: p.activeID, Secret: p.keys[p.activeID]}, nil
}

func (p *StaticProvider) Lookup(keyID string) (Key, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	secret, ok := p.keys[keyID]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return Key{ID: keyID, Secret: secret}, nil
}

// Rotate installs a new active key. The old key stays resolvable so
// in-flight authorizations verify until their leases expire.
func (p *StaticProvider) Rotate(keyID string, secret []byte) error {
	if keyID == "" {
		return errors.New("keys: key id required")
	}
	if len(secret) < 16 {
		return fmt.Errorf("keys: secret too short (%d bytes, need >= 16)", len(secret))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.keys[keyID]; exists {
		return fmt.Errorf("keys: key id %s already present", keyID)
	}
	p.keys[keyID] = secret
	p.activeID = keyID
	return nil
}

// FromEnv builds a provider from TSRC_HMAC_KEY_ID and TSRC_HMAC_KEY
// (base64-encoded secret). This is the default production path; the
// secret is read once and never re-exported.
func FromEnv() (*StaticProvider, error) {
	keyID := os.Getenv("TSRC_HMAC_KEY_ID")
	encoded := os.Getenv("TSRC_HMAC_KEY")
	if keyID == "" || encoded == "" {
		return nil, errors.New("keys: TSRC_HMAC_KEY_ID and TSRC_HMAC_KEY must be set")
	}

	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keys: decode TSRC_HMAC_KEY: %w", err)
	}
	return NewStaticProvider(keyID, secret)
}
