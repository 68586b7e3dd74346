package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
)

// PersonService manages Person records outside of the relationship engine.
type PersonService struct {
	store ports.GraphStore
	now   func() time.Time
	newID func() string
}

// PersonOption configures a PersonService.
type PersonOption func(*PersonService)

// WithPersonClock overrides the time source stamped on new Persons.
func WithPersonClock(now func() time.Time) PersonOption {
	return func(s *PersonService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPersonIDs overrides the id generator for new Persons.
func WithPersonIDs(newID func() string) PersonOption {
	return func(s *PersonService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewPersonService creates a new PersonService.
func NewPersonService(store ports.GraphStore, opts ...PersonOption) *PersonService {
	s := &PersonService{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a new Person with no relationships.
func (s *PersonService) Create(ctx context.Context, name string, gender entities.Gender) (*entities.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", entities.ErrInvalidOperation)
	}
	if !gender.IsValid() {
		return nil, fmt.Errorf("invalid gender %q: %w", gender, entities.ErrInvalidOperation)
	}

	now := s.now()
	person := &entities.Person{
		ID:        s.newID(),
		Name:      name,
		Gender:    gender,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		if err := st.Persons.Create(ctx, person); err != nil {
			return fmt.Errorf("creating person: %w", err)
		}
		return st.Audit.LogAction(ctx, entities.ActionPersonCreate, person.ID, map[string]any{
			"name":   person.Name,
			"gender": string(person.Gender),
		})
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

// Get returns a Person by id.
func (s *PersonService) Get(ctx context.Context, id string) (*entities.Person, error) {
	var person *entities.Person
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		person, err = mustGetPerson(ctx, st.Persons, id)
		return err
	})
	return person, err
}

// List returns Persons ordered by name with pagination.
func (s *PersonService) List(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	var persons []*entities.Person
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		persons, err = st.Persons.List(ctx, limit, offset)
		return err
	})
	return persons, err
}

// Count returns the number of Persons.
func (s *PersonService) Count(ctx context.Context) (int, error) {
	var n int
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		n, err = st.Persons.Count(ctx)
		return err
	})
	return n, err
}

// History returns the audit trail for a Person or Relationship id.
func (s *PersonService) History(ctx context.Context, subjectID string) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		entries, err = st.Audit.FindAuditLog(ctx, subjectID)
		return err
	})
	return entries, err
}
