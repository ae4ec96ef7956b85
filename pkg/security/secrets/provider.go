// Package secrets resolves ${secret:name} references in configuration
// values, so API keys do not have to be written into the config file.
package secrets

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned by a provider that has no value for a name.
var ErrSecretNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the value of the named secret or an error wrapping
	// ErrSecretNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name returns the provider name ("env", "file").
	Name() string
}
