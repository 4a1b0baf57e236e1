// Package secrets implements the Secrets Store (spec component C14):
// multi-version, TTL'd secret values with soft-delete, grounded on the
// teacher's graph/store/sqlite.go and mysql.go migration-table pattern
// (schema repurposed here to (name, version, value, enabled, expires_on)
// rows with monotonic creation order).
package secrets

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a secret (or the requested version of it)
// does not exist, or has no live version.
var ErrNotFound = errors.New("secrets: not found")

// Properties is a secret's metadata without its value, per spec.md §4.8
// ("listSecrets() ... properties only, no values").
type Properties struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Enabled    bool              `json:"enabled"`
	ExpiresOn  *time.Time        `json:"expiresOn,omitempty"`
	ContentType string           `json:"contentType,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SetOptions configures SetSecret.
type SetOptions struct {
	Enabled     bool
	ExpiresOn   *time.Time
	ContentType string
	Tags        map[string]string
}

// Secret is a value together with its properties.
type Secret struct {
	Properties Properties
	Value      string
}

// Store is the Secrets Store persistence contract, per spec.md §4.8.
type Store interface {
	// GetSecret returns the latest enabled, non-expired version of name if
	// version is empty; otherwise it returns that specific version
	// regardless of whether it is the latest.
	GetSecret(ctx context.Context, name, version string) (Secret, error)

	// SetSecret creates a new version of name with value, using a
	// monotonically increasing version id.
	SetSecret(ctx context.Context, name, value string, opts SetOptions) (Properties, error)

	// DeleteSecret soft-deletes name: every version is disabled, but
	// none are physically removed.
	DeleteSecret(ctx context.Context, name string) error

	// ListSecrets returns the latest live Properties for every secret
	// name that has one, never including values.
	ListSecrets(ctx context.Context) ([]Properties, error)
}
