package auth

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey is returned for unknown keys.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrAPIKeyDisabled is returned for keys that exist but are disabled.
	ErrAPIKeyDisabled = errors.New("API key disabled")
)

// APIKeyValidator validates API keys against a configured set of keys
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewAPIKeyValidator creates a new API key validator with the given keys
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	return &APIKeyValidator{
		keys: index(keys),
	}
}

func index(keys []*APIKeyInfo) map[string]*APIKeyInfo {
	keyMap := make(map[string]*APIKeyInfo, len(keys))
	for _, key := range keys {
		keyMap[key.Key] = key
	}
	return keyMap
}

// Validate checks if the given API key is valid and returns its info
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[key]
	if !ok {
		return nil, ErrInvalidAPIKey
	}

	if !info.Enabled {
		return nil, ErrAPIKeyDisabled
	}

	return info, nil
}

// Len returns the number of configured keys, enabled or not.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// Replace swaps the whole key set atomically. It is used when the
// configuration file is reloaded.
func (v *APIKeyValidator) Replace(keys []*APIKeyInfo) {
	m := index(keys)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys = m
}
