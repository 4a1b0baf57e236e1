// Package store implements the Workflow Store (spec component C12):
// versioned storage for wdl.Definition documents with strict semver
// bumping. Grounded on the teacher's graph/store/sqlite.go migration-table
// pattern, schema repurposed to (workflow_id, version, definition,
// metadata) rows ordered by creation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/certo-ventures/loom/workflow/wdl"
)

// ErrAlreadyExists is returned by Create when id already has a version.
var ErrAlreadyExists = errors.New("store: workflow already exists")

// ErrNotFound is returned when id has no stored versions.
var ErrNotFound = errors.New("store: workflow not found")

// Bump names a semver bump kind, per spec.md §4.7.
type Bump string

const (
	BumpMajor Bump = "major"
	BumpMinor Bump = "minor"
	BumpPatch Bump = "patch"
)

// Store is the versioned workflow persistence contract.
type Store interface {
	// Create pins id's first version at 1.0.0. It fails with
	// ErrAlreadyExists if id already has a version.
	Create(ctx context.Context, id string, def wdl.Definition, meta wdl.VersionMetadata) (wdl.Version, error)

	// Publish applies bump to id's latest version's semver and stores
	// def as the new latest version.
	Publish(ctx context.Context, id string, def wdl.Definition, bump Bump) (wdl.Version, error)

	// Get returns id's latest version.
	Get(ctx context.Context, id string) (wdl.Version, error)

	// GetVersion returns a specific version of id.
	GetVersion(ctx context.Context, id, version string) (wdl.Version, error)

	// ListVersions returns every stored version of id, oldest first.
	ListVersions(ctx context.Context, id string) ([]wdl.Version, error)
}

// BumpVersion applies bump to current per spec.md §4.7:
// major -> M+1.0.0, minor -> M.m+1.0, patch -> M.m.p+1.
func BumpVersion(current string, bump Bump) (string, error) {
	v, err := semver.NewVersion(current)
	if err != nil {
		return "", fmt.Errorf("store: invalid version %q: %w", current, err)
	}
	var next semver.Version
	switch bump {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	case BumpPatch:
		next = v.IncPatch()
	default:
		return "", fmt.Errorf("store: unknown bump kind %q", bump)
	}
	return next.String(), nil
}
