package keys

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// keyringFile is the on-disk JSON format for persisted keys.
type keyringFile struct {
	ActiveKeyID string            `json:"active_key_id"`
	Keys        map[string]string `json:"keys"` // key_id -> base64 secret
}

// Keyring is a file-backed Provider with versioned keys. New keys can
// be generated while old keys remain resolvable for verification.
type Keyring struct {
	mu    sync.RWMutex
	path  string
	file  keyringFile
	cache map[string][]byte
}

// OpenKeyring loads or creates a keyring at the given path. A fresh
// keyring generates a 32-byte key under id "k1".
func OpenKeyring(path string) (*Keyring, error) {
	kr := &Keyring{
		path:  path,
		cache: make(map[string][]byte),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("keys: create dir: %w", err)
		}

		secret := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return nil, fmt.Errorf("keys: generate key: %w", err)
		}

		kr.file = keyringFile{
			ActiveKeyID: "k1",
			Keys:        map[string]string{"k1": base64.StdEncoding.EncodeToString(secret)},
		}
		kr.cache["k1"] = secret

		if err := kr.persist(); err != nil {
			return nil, err
		}
		return kr, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read keyring: %w", err)
	}
	if err := json.Unmarshal(data, &kr.file); err != nil {
		return nil, fmt.Errorf("keys: parse keyring: %w", err)
	}

	for id, encoded := range kr.file.Keys {
		secret, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("keys: decode key %s: %w", id, err)
		}
		if len(secret) < 16 {
			return nil, fmt.Errorf("keys: key %s too short (%d bytes)", id, len(secret))
		}
		kr.cache[id] = secret
	}

	if _, ok := kr.cache[kr.file.ActiveKeyID]; !ok {
		return nil, fmt.Errorf("keys: active key %s not in keyring", kr.file.ActiveKeyID)
	}
	return kr, nil
}

func (k *Keyring) Active() (Key, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return Key{ID: k.file.ActiveKeyID, Secret: k.cache[k.file.ActiveKeyID]}, nil
}

func (k *Keyring) Lookup(keyID string) (Key, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	secret, ok := k.cache[keyID]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return Key{ID: keyID, Secret: secret}, nil
}

// Rotate generates a new active key "k<N+1>" and persists the keyring.
// Previous keys stay available for verification.
func (k *Keyring) Rotate() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("keys: generate key: %w", err)
	}

	newID := fmt.Sprintf("k%d", len(k.file.Keys)+1)
	if _, exists := k.file.Keys[newID]; exists {
		return "", fmt.Errorf("keys: key id %s already present", newID)
	}

	k.file.Keys[newID] = base64.StdEncoding.EncodeToString(secret)
	k.file.ActiveKeyID = newID
	k.cache[newID] = secret

	if err := k.persist(); err != nil {
		return "", err
	}
	return newID, nil
}

// persist writes the keyring to disk with restricted permissions.
func (k *Keyring) persist() error {
	data, err := json.MarshalIndent(k.file, "", "  ")
	if err != nil {
		return fmt.Errorf("keys: marshal keyring: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0600); err != nil {
		return fmt.Errorf("keys: write keyring: %w", err)
	}
	return nil
}
