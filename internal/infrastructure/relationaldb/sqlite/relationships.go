package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ersonp/kin-core/internal/domain/entities"
)

const relationshipColumns = `id, from_id, to_id, type, description, strength, since, notes, reciprocal_suppressed, created_at`

type relationshipStore struct {
	tx *sql.Tx
}

// Find returns the edge for a (from, to, type) triple. Types match
// case-insensitively through the stored type_key.
func (s *relationshipStore) Find(ctx context.Context, fromID, toID, relType string) (*entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE from_id = ? AND to_id = ? AND type_key = ?
	`
	row := s.tx.QueryRowContext(ctx, query, fromID, toID, entities.NormalizeType(relType))
	return scanOptionalRelationship(row)
}

// FindByID finds an edge by its ID.
func (s *relationshipStore) FindByID(ctx context.Context, id string) (*entities.Relationship, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = ?`, id)
	return scanOptionalRelationship(row)
}

// FindByEndpoint finds all edges where id is the source or the target.
func (s *relationshipStore) FindByEndpoint(ctx context.Context, id string) ([]entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE from_id = ? OR to_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return s.queryRelationships(ctx, query, id, id)
}

// Insert saves a new edge.
func (s *relationshipStore) Insert(ctx context.Context, rel *entities.Relationship) error {
	query := `
		INSERT INTO relationships (
			id, from_id, to_id, type, type_key, description, strength,
			since, notes, reciprocal_suppressed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var since sql.NullTime
	if rel.Since != nil {
		since = sql.NullTime{Time: *rel.Since, Valid: true}
	}
	createdAt := rel.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}

	_, err := s.tx.ExecContext(ctx, query,
		rel.ID,
		rel.FromID,
		rel.ToID,
		rel.Type,
		entities.NormalizeType(rel.Type),
		rel.Description,
		rel.Strength,
		since,
		rel.Notes,
		rel.ReciprocalSuppressed,
		createdAt,
	)
	if err != nil {
		return mapConflict(err, fmt.Sprintf("relationship %s -[%s]-> %s", rel.FromID, rel.Type, rel.ToID))
	}
	return nil
}

// DeleteByID removes a single edge.
func (s *relationshipStore) DeleteByID(ctx context.Context, id string) error {
	result, err := s.tx.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("relationship %s: %w", id, entities.ErrNotFound)
	}
	return nil
}

// DeleteByEndpoint removes every edge touching id.
func (s *relationshipStore) DeleteByEndpoint(ctx context.Context, id string) (int, error) {
	result, err := s.tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_id = ? OR to_id = ?`, id, id)
	if err != nil {
		return 0, fmt.Errorf("deleting relationships: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rows), nil
}

// List returns every edge.
func (s *relationshipStore) List(ctx context.Context) ([]entities.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		ORDER BY created_at ASC, id ASC
	`
	return s.queryRelationships(ctx, query)
}

// Count returns the total number of edges.
func (s *relationshipStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

// queryRelationships is a helper to execute relationship queries.
func (s *relationshipStore) queryRelationships(ctx context.Context, query string, args ...any) ([]entities.Relationship, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var result []entities.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rel)
	}
	return result, rows.Err()
}

func scanOptionalRelationship(row *sql.Row) (*entities.Relationship, error) {
	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rel, err
}

func scanRelationship(row rowScanner) (*entities.Relationship, error) {
	var (
		rel   entities.Relationship
		since sql.NullTime
	)
	err := row.Scan(
		&rel.ID,
		&rel.FromID,
		&rel.ToID,
		&rel.Type,
		&rel.Description,
		&rel.Strength,
		&since,
		&rel.Notes,
		&rel.ReciprocalSuppressed,
		&rel.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}
	if since.Valid {
		t := since.Time
		rel.Since = &t
	}
	return &rel, nil
}
