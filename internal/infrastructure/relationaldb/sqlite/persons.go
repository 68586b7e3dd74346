package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/kin-core/internal/domain/entities"
)

const personColumns = `id, name, gender, spouse_id, father_id, mother_id, created_at, updated_at`

type personStore struct {
	tx *sql.Tx
}

// Get finds a person by ID.
func (s *personStore) Get(ctx context.Context, id string) (*entities.Person, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id)

	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return person, nil
}

// Create inserts a new person.
func (s *personStore) Create(ctx context.Context, person *entities.Person) error {
	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := person.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	updatedAt := person.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	gender := person.Gender
	if gender == "" {
		gender = entities.GenderUnspecified
	}

	_, err := s.tx.ExecContext(ctx, query,
		person.ID,
		person.Name,
		string(gender),
		nullableID(person.SpouseID),
		nullableID(person.FatherID),
		nullableID(person.MotherID),
		createdAt,
		updatedAt,
	)
	if err != nil {
		return mapConflict(err, "person "+person.ID)
	}
	return nil
}

// Update applies patch to one person.
func (s *personStore) Update(ctx context.Context, id string, patch entities.PersonPatch) error {
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE persons SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.tx.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("person %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// UpdateWhere applies patch to every person whose ref column equals filter.Equals.
func (s *personStore) UpdateWhere(ctx context.Context, filter entities.PersonFilter, patch entities.PersonPatch) (int, error) {
	if filter.Equals == "" {
		return 0, nil
	}
	column, err := refColumn(filter.Ref)
	if err != nil {
		return 0, err
	}
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		return 0, nil
	}

	query := `UPDATE persons SET ` + strings.Join(sets, ", ") + ` WHERE ` + column + ` = ?`
	result, err := s.tx.ExecContext(ctx, query, append(args, filter.Equals)...)
	if err != nil {
		return 0, fmt.Errorf("updating persons by %s: %w", column, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rows), nil
}

// Delete removes a person.
func (s *personStore) Delete(ctx context.Context, id string) error {
	result, err := s.tx.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("person %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// List lists persons ordered by name with pagination.
func (s *personStore) List(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT ` + personColumns + `
		FROM persons
		ORDER BY name ASC, id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.tx.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Person, 0, max(limit, 0))
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, person)
	}
	return result, rows.Err()
}

// Count returns the number of persons.
func (s *personStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*entities.Person, error) {
	var (
		person                       entities.Person
		gender                       string
		spouseID, fatherID, motherID sql.NullString
	)
	err := row.Scan(
		&person.ID,
		&person.Name,
		&gender,
		&spouseID,
		&fatherID,
		&motherID,
		&person.CreatedAt,
		&person.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning person: %w", err)
	}
	person.Gender = entities.Gender(gender)
	person.SpouseID = spouseID.String
	person.FatherID = fatherID.String
	person.MotherID = motherID.String
	return &person, nil
}

// patchAssignments renders the SET clause for patch. updated_at is always bumped.
func patchAssignments(patch entities.PersonPatch) ([]string, []any) {
	if patch.IsEmpty() {
		return nil, nil
	}

	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, string(*patch.Gender))
	}
	for _, change := range []struct {
		column string
		value  entities.IDChange
	}{
		{"spouse_id", patch.SpouseID},
		{"father_id", patch.FatherID},
		{"mother_id", patch.MotherID},
	} {
		if change.value.Set {
			sets = append(sets, change.column+" = ?")
			args = append(args, nullableID(change.value.ID))
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, timeNow())
	return sets, args
}

func refColumn(ref entities.PersonRef) (string, error) {
	switch ref {
	case entities.RefSpouse:
		return "spouse_id", nil
	case entities.RefFather:
		return "father_id", nil
	case entities.RefMother:
		return "mother_id", nil
	default:
		return "", fmt.Errorf("unknown person reference %q", ref)
	}
}
