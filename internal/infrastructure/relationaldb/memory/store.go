// Package memory provides an in-process implementation of ports.GraphStore.
// Transactions are serialized by a single lock and run against a private copy
// of the graph that replaces the shared state only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
)

// DefaultTxTimeout bounds a transaction when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Store implements ports.GraphStore in memory.
type Store struct {
	mu      sync.Mutex
	timeout time.Duration

	persons     map[string]entities.Person
	rels        map[string]entities.Relationship
	audit       []entities.AuditEntry
	nextAuditID int64
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout sets the per-transaction timeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// NewStore creates an empty in-memory graph store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		timeout: DefaultTxTimeout,
		persons: make(map[string]entities.Person),
		rels:    make(map[string]entities.Relationship),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema is a no-op for the in-memory store.
func (s *Store) EnsureSchema(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// RunInTx runs fn against a snapshot of the graph and publishes the snapshot
// only if fn succeeds and ctx is still live.
func (s *Store) RunInTx(ctx context.Context, fn func(stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	tx := s.begin()
	if err := fn(tx.stores()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	s.persons = tx.persons
	s.rels = tx.rels
	s.audit = tx.audit
	s.nextAuditID = tx.nextAuditID
	return nil
}

// begin copies the committed state into a new transaction. Caller holds s.mu.
func (s *Store) begin() *txState {
	tx := &txState{
		persons:     make(map[string]entities.Person, len(s.persons)),
		rels:        make(map[string]entities.Relationship, len(s.rels)),
		audit:       make([]entities.AuditEntry, len(s.audit)),
		nextAuditID: s.nextAuditID,
	}
	for id, p := range s.persons {
		tx.persons[id] = p
	}
	for id, r := range s.rels {
		tx.rels[id] = r
	}
	copy(tx.audit, s.audit)
	return tx
}

// txState is the working copy of one transaction.
type txState struct {
	persons     map[string]entities.Person
	rels        map[string]entities.Relationship
	audit       []entities.AuditEntry
	nextAuditID int64
}

func (tx *txState) stores() ports.Stores {
	return ports.Stores{
		Persons:       &personStore{tx: tx},
		Relationships: &relationshipStore{tx: tx},
		Audit:         &auditLog{tx: tx},
	}
}

type personStore struct {
	tx *txState
}

func (p *personStore) Get(ctx context.Context, id string) (*entities.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	person, ok := p.tx.persons[id]
	if !ok {
		return nil, nil
	}
	return &person, nil
}

func (p *personStore) Create(ctx context.Context, person *entities.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := p.tx.persons[person.ID]; exists {
		return fmt.Errorf("person %s: %w", person.ID, entities.ErrConflict)
	}
	p.tx.persons[person.ID] = *person
	return nil
}

func (p *personStore) Update(ctx context.Context, id string, patch entities.PersonPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	person, ok := p.tx.persons[id]
	if !ok {
		return fmt.Errorf("person %s: %w", id, entities.ErrNotFound)
	}
	patch.Apply(&person)
	person.UpdatedAt = timeNow()
	p.tx.persons[id] = person
	return nil
}

func (p *personStore) UpdateWhere(ctx context.Context, filter entities.PersonFilter, patch entities.PersonPatch) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	for id, person := range p.tx.persons {
		if !filter.Matches(&person) {
			continue
		}
		patch.Apply(&person)
		person.UpdatedAt = timeNow()
		p.tx.persons[id] = person
		n++
	}
	return n, nil
}

func (p *personStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := p.tx.persons[id]; !ok {
		return fmt.Errorf("person %s: %w", id, entities.ErrNotFound)
	}
	delete(p.tx.persons, id)
	return nil
}

func (p *personStore) List(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := make([]*entities.Person, 0, len(p.tx.persons))
	for _, person := range p.tx.persons {
		all = append(all, &person)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []*entities.Person{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (p *personStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(p.tx.persons), nil
}

type relationshipStore struct {
	tx *txState
}

func (r *relationshipStore) Find(ctx context.Context, fromID, toID, relType string) (*entities.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rel := range r.tx.rels {
		if rel.FromID == fromID && rel.ToID == toID && entities.SameType(rel.Type, relType) {
			return &rel, nil
		}
	}
	return nil, nil
}

func (r *relationshipStore) FindByID(ctx context.Context, id string) (*entities.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, ok := r.tx.rels[id]
	if !ok {
		return nil, nil
	}
	return &rel, nil
}

func (r *relationshipStore) FindByEndpoint(ctx context.Context, id string) ([]entities.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]entities.Relationship, 0, 16)
	for _, rel := range r.tx.rels {
		if rel.Touches(id) {
			result = append(result, rel)
		}
	}
	sortRelationships(result)
	return result, nil
}

func (r *relationshipStore) Insert(ctx context.Context, rel *entities.Relationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := r.tx.rels[rel.ID]; exists {
		return fmt.Errorf("relationship %s: %w", rel.ID, entities.ErrConflict)
	}
	for _, existing := range r.tx.rels {
		if existing.FromID == rel.FromID && existing.ToID == rel.ToID && entities.SameType(existing.Type, rel.Type) {
			return fmt.Errorf("relationship %s -[%s]-> %s: %w", rel.FromID, rel.Type, rel.ToID, entities.ErrConflict)
		}
	}
	r.tx.rels[rel.ID] = *rel
	return nil
}

func (r *relationshipStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.tx.rels[id]; !ok {
		return fmt.Errorf("relationship %s: %w", id, entities.ErrNotFound)
	}
	delete(r.tx.rels, id)
	return nil
}

func (r *relationshipStore) DeleteByEndpoint(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	for relID, rel := range r.tx.rels {
		if rel.Touches(id) {
			delete(r.tx.rels, relID)
			n++
		}
	}
	return n, nil
}

func (r *relationshipStore) List(ctx context.Context) ([]entities.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]entities.Relationship, 0, len(r.tx.rels))
	for _, rel := range r.tx.rels {
		result = append(result, rel)
	}
	sortRelationships(result)
	return result, nil
}

func (r *relationshipStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(r.tx.rels), nil
}

// sortRelationships orders edges by creation time, then id, for stable output.
func sortRelationships(rels []entities.Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].CreatedAt.Before(rels[j].CreatedAt)
		}
		return strings.Compare(rels[i].ID, rels[j].ID) < 0
	})
}

type auditLog struct {
	tx *txState
}

func (a *auditLog) LogAction(ctx context.Context, action, subjectID string, details map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.tx.nextAuditID++
	a.tx.audit = append(a.tx.audit, entities.AuditEntry{
		ID:        a.tx.nextAuditID,
		Action:    action,
		SubjectID: subjectID,
		Details:   details,
		CreatedAt: timeNow(),
	})
	return nil
}

func (a *auditLog) FindAuditLog(ctx context.Context, subjectID string) ([]entities.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []entities.AuditEntry
	for i := len(a.tx.audit) - 1; i >= 0; i-- {
		if a.tx.audit[i].SubjectID == subjectID {
			entries = append(entries, a.tx.audit[i])
		}
	}
	return entries, nil
}
