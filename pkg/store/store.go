// Package store persists built topology documents for the API server.
//
// A document pairs a built system with the report of its last check,
// keyed by a generated ID and carrying a unique, human-chosen name.
//
// # Backends
//
//   - memory: in-process storage for development and tests
//   - mongo: MongoDB-backed storage for server deployments
//
// Backends return the same sentinel errors, so callers can map them
// without knowing which backend serves them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/topology"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no document has the requested ID.
	ErrNotFound = errors.New("topology not found")

	// ErrDuplicateName is returned when another document already carries
	// the requested name.
	ErrDuplicateName = errors.New("topology name already taken")
)

// Document is one stored topology with the report of its last check.
type Document struct {
	ID         string           `json:"id" bson:"_id"`
	Name       string           `json:"name" bson:"name"`
	SystemHash string           `json:"system_hash" bson:"system_hash"`
	System     *topology.System `json:"system" bson:"system"`
	Report     *report.Report   `json:"report,omitempty" bson:"report,omitempty"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" bson:"updated_at"`
}

// New creates a document with a fresh ID and timestamps.
func New(name, systemHash string, sys *topology.System, rep *report.Report) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:         uuid.NewString(),
		Name:       name,
		SystemHash: systemHash,
		System:     sys,
		Report:     rep,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store is the interface for topology document storage backends.
type Store interface {
	// Put inserts the document or replaces the document with the same ID.
	// Returns ErrDuplicateName if a different document holds the name.
	Put(ctx context.Context, doc *Document) error

	// Get retrieves a document by ID. Returns ErrNotFound if it does not
	// exist.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns all documents, newest first.
	List(ctx context.Context) ([]*Document, error)

	// Delete removes a document. Returns ErrNotFound if it does not
	// exist.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
