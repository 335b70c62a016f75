// Package storage persists pipeline stage snapshots for debugging. Every
// resolve request can dump its intermediate stages (search results, filtered
// set, shortlists, collected options, final result) as JSON for later
// inspection.
package storage

import (
	"context"
	"time"
)

// Metadata describes a stored snapshot.
type Metadata struct {
	RequestID string    `json:"requestId,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	SavedAt   time.Time `json:"savedAt,omitempty"`
}

// Storage defines the snapshot storage operations. Implementations can be
// local filesystem, S3, etc.
type Storage interface {
	// Put stores content at the given key with optional metadata.
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error

	// Get retrieves content from the given key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks if a snapshot exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys matching the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a snapshot at the given key.
	Delete(ctx context.Context, key string) error
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)
