package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/infrastructure/parsers"
)

// SinceLayout is the date format accepted for a relationship's "since" value.
const SinceLayout = "2006-01-02"

// ConflictStrategy defines how to handle relationships that already exist.
type ConflictStrategy string

const (
	// ConflictSkip counts existing relationships as skipped.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictFail reports existing relationships as row errors.
	ConflictFail ConflictStrategy = "fail"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing relationships
	Workers    int              // Rows applied concurrently; <= 1 applies them in file order
}

// ImportError represents an error for a specific row during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
}

// ImportService creates relationships in bulk through the graph engine, so
// every row gets the same reciprocal and consistency handling as a single call.
type ImportService struct {
	graph *GraphService
}

// NewImportService creates a new import service.
func NewImportService(graph *GraphService) *ImportService {
	return &ImportService{
		graph: graph,
	}
}

// Import validates and applies raw relationships. Row-level domain failures
// (unknown person, duplicate, self-relationship) are reported in the result;
// a storage failure aborts the import and is returned as the error.
func (s *ImportService) Import(ctx context.Context, raws []parsers.RawRelationship, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	requests, validationErrors := s.validateRows(raws)
	result.Errors = validationErrors

	if len(requests) == 0 {
		return result, nil
	}

	if opts.DryRun {
		result.Imported = len(requests)
		return result, nil
	}

	if err := s.apply(ctx, requests, opts, result); err != nil {
		return nil, err
	}

	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Line < result.Errors[j].Line
	})
	return result, nil
}

// importRow is a validated row ready to be applied.
type importRow struct {
	line int
	req  CreateRelationshipRequest
}

// apply runs the create requests, at most opts.Workers at a time.
func (s *ImportService) apply(ctx context.Context, rows []importRow, opts ImportOptions, result *ImportResult) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, row := range rows {
		g.Go(func() error {
			_, err := s.graph.CreateRelationship(gctx, row.req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Imported++
			case errors.Is(err, entities.ErrConflict) && opts.OnConflict != ConflictFail:
				result.Skipped++
			case errors.Is(err, entities.ErrConflict),
				errors.Is(err, entities.ErrNotFound),
				errors.Is(err, entities.ErrInvalidOperation):
				result.Errors = append(result.Errors, ImportError{Line: row.line, Message: err.Error()})
			default:
				return fmt.Errorf("line %d: %w", row.line, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// validateRows validates raw rows and returns requests for the valid ones.
func (s *ImportService) validateRows(raws []parsers.RawRelationship) ([]importRow, []ImportError) {
	rows := make([]importRow, 0, len(raws))
	var errs []ImportError

	for i := range raws {
		raw := &raws[i]
		lineNum := raw.LineNum
		if lineNum == 0 {
			lineNum = i + 1
		}

		req, ierr := toRequest(raw, lineNum)
		if ierr != nil {
			errs = append(errs, *ierr)
			continue
		}
		rows = append(rows, importRow{line: lineNum, req: req})
	}

	return rows, errs
}

// toRequest validates a single raw row and converts it to a create request.
func toRequest(raw *parsers.RawRelationship, lineNum int) (CreateRelationshipRequest, *ImportError) {
	from := strings.TrimSpace(raw.From)
	to := strings.TrimSpace(raw.To)
	relType := strings.TrimSpace(raw.Type)

	if from == "" {
		return CreateRelationshipRequest{}, &ImportError{Line: lineNum, Field: "from", Message: "missing required field: from"}
	}
	if to == "" {
		return CreateRelationshipRequest{}, &ImportError{Line: lineNum, Field: "to", Message: "missing required field: to"}
	}
	if relType == "" {
		return CreateRelationshipRequest{}, &ImportError{Line: lineNum, Field: "type", Message: "missing required field: type"}
	}
	if from == to {
		return CreateRelationshipRequest{}, &ImportError{
			Line:    lineNum,
			Field:   "to",
			Value:   to,
			Message: "a person cannot be related to themselves",
		}
	}

	req := CreateRelationshipRequest{
		FromID: from,
		ToID:   to,
		Type:   relType,
		Attrs: entities.RelationshipAttrs{
			Description: raw.Description,
			Notes:       raw.Notes,
		},
		NoReciprocal: raw.Reciprocal != nil && !*raw.Reciprocal,
	}

	if raw.Strength != nil {
		req.Attrs.Strength = *raw.Strength
	}

	if raw.Since != "" {
		since, err := time.Parse(SinceLayout, raw.Since)
		if err != nil {
			return CreateRelationshipRequest{}, &ImportError{
				Line:    lineNum,
				Field:   "since",
				Value:   raw.Since,
				Message: fmt.Sprintf("invalid date %q (expected YYYY-MM-DD)", raw.Since),
			}
		}
		req.Attrs.Since = &since
	}

	return req, nil
}
