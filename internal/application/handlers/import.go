package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/services"
	"github.com/ersonp/kin-core/internal/infrastructure/parsers"
)

// ImportHandler reads a relationship file and feeds its rows through the
// import service. Option errors are reported here, before the file is opened,
// so the CLI and tests see the same messages.
type ImportHandler struct {
	service        *services.ImportService
	defaultWorkers int
}

// NewImportHandler creates an import handler. defaultWorkers applies when a
// request leaves Workers at zero; values below one mean sequential.
func NewImportHandler(service *services.ImportService, defaultWorkers int) *ImportHandler {
	if defaultWorkers < 1 {
		defaultWorkers = 1
	}
	return &ImportHandler{
		service:        service,
		defaultWorkers: defaultWorkers,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format     string                    // json, csv or auto; empty means auto
	DryRun     bool                      // Validate without saving
	OnConflict services.ConflictStrategy // Empty means skip
	Workers    int                       // Zero uses the handler default
}

// ImportResult summarises one import run.
type ImportResult struct {
	Rows     int // Rows read from the file
	Imported int
	Skipped  int
	Workers  int // Concurrency the rows were applied with
	Errors   []services.ImportError
}

// Handle imports relationships from filePath.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	serviceOpts, err := h.resolve(opts)
	if err != nil {
		return nil, err
	}

	parser, err := parserFor(filePath, opts.Format)
	if err != nil {
		return nil, err
	}

	raws, err := readRows(filePath, parser)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Rows: len(raws), Workers: serviceOpts.Workers}
	if len(raws) == 0 {
		return result, nil
	}

	imported, err := h.service.Import(ctx, raws, serviceOpts)
	if err != nil {
		return nil, err
	}
	result.Imported = imported.Imported
	result.Skipped = imported.Skipped
	result.Errors = imported.Errors
	return result, nil
}

// resolve validates opts and fills in defaults.
func (h *ImportHandler) resolve(opts ImportOptions) (services.ImportOptions, error) {
	strategy := opts.OnConflict
	switch strategy {
	case "":
		strategy = services.ConflictSkip
	case services.ConflictSkip, services.ConflictFail:
	default:
		return services.ImportOptions{}, fmt.Errorf("invalid conflict strategy %q (valid: skip, fail): %w",
			opts.OnConflict, entities.ErrInvalidOperation)
	}

	workers := opts.Workers
	switch {
	case workers < 0:
		return services.ImportOptions{}, fmt.Errorf("invalid worker count %d: %w", workers, entities.ErrInvalidOperation)
	case workers == 0:
		workers = h.defaultWorkers
	}

	return services.ImportOptions{
		DryRun:     opts.DryRun,
		OnConflict: strategy,
		Workers:    workers,
	}, nil
}

func parserFor(filePath, format string) (parsers.Parser, error) {
	format = strings.TrimSpace(format)
	if format == "" || strings.EqualFold(format, "auto") {
		if p := parsers.ForFile(filePath); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("unsupported format for file: %s: %w", filePath, entities.ErrInvalidOperation)
	}
	if p := parsers.ForFormat(format); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("unsupported format %q (valid: json, csv, auto): %w", format, entities.ErrInvalidOperation)
}

func readRows(filePath string, parser parsers.Parser) ([]parsers.RawRelationship, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	raws, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	return raws, nil
}
