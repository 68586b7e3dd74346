// Package ports defines the storage boundaries the graph engine depends on.
package ports

import (
	"context"

	"github.com/ersonp/kin-core/internal/domain/entities"
)

// PersonStore holds Person records. Lookups return (nil, nil) when the Person
// does not exist.
type PersonStore interface {
	// Get returns the Person with the given id.
	Get(ctx context.Context, id string) (*entities.Person, error)

	// Create inserts a new Person.
	Create(ctx context.Context, person *entities.Person) error

	// Update applies patch to a single Person. Returns entities.ErrNotFound
	// if the Person does not exist.
	Update(ctx context.Context, id string, patch entities.PersonPatch) error

	// UpdateWhere applies patch to every Person matching filter and returns
	// how many were changed.
	UpdateWhere(ctx context.Context, filter entities.PersonFilter, patch entities.PersonPatch) (int, error)

	// Delete removes a Person. Returns entities.ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns Persons ordered by name. A limit <= 0 means no limit.
	List(ctx context.Context, limit, offset int) ([]*entities.Person, error)

	// Count returns the number of Persons.
	Count(ctx context.Context) (int, error)
}

// RelationshipStore holds directed, typed Relationship edges.
type RelationshipStore interface {
	// Find returns the edge for the (from, to, type) triple, comparing type
	// case-insensitively. Returns nil if none exists.
	Find(ctx context.Context, fromID, toID, relType string) (*entities.Relationship, error)

	// FindByID returns the edge with the given id, or nil.
	FindByID(ctx context.Context, id string) (*entities.Relationship, error)

	// FindByEndpoint returns every edge where id is the source or the target.
	FindByEndpoint(ctx context.Context, id string) ([]entities.Relationship, error)

	// Insert stores a new edge. Returns entities.ErrConflict if the triple exists.
	Insert(ctx context.Context, rel *entities.Relationship) error

	// DeleteByID removes a single edge. Returns entities.ErrNotFound if absent.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByEndpoint removes every edge touching id and returns the count.
	DeleteByEndpoint(ctx context.Context, id string) (int, error)

	// List returns every edge.
	List(ctx context.Context) ([]entities.Relationship, error)

	// Count returns the number of edges.
	Count(ctx context.Context) (int, error)
}

// AuditLog records graph mutations.
type AuditLog interface {
	// LogAction appends an entry to the audit log.
	LogAction(ctx context.Context, action, subjectID string, details map[string]any) error

	// FindAuditLog returns entries for a subject, newest first.
	FindAuditLog(ctx context.Context, subjectID string) ([]entities.AuditEntry, error)
}

// Stores is the set of stores bound to a single transaction.
type Stores struct {
	Persons       PersonStore
	Relationships RelationshipStore
	Audit         AuditLog
}

// GraphStore is the consistency scope for the graph. RunInTx executes fn with
// stores bound to one transaction: if fn returns an error, or ctx is
// cancelled before commit, none of fn's writes become visible.
type GraphStore interface {
	// EnsureSchema creates the storage schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// RunInTx runs fn inside a transaction.
	RunInTx(ctx context.Context, fn func(stores Stores) error) error

	// Close releases the underlying resources.
	Close() error
}
