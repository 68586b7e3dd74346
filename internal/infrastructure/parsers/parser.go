// Package parsers provides parsers for importing relationships from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawRelationship represents a relationship row parsed from an external
// source before validation.
type RawRelationship struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Strength    *float64 `json:"strength,omitempty"` // Pointer to distinguish 0 from unset
	Since       string   `json:"since,omitempty"`    // YYYY-MM-DD
	Notes       string   `json:"notes,omitempty"`
	Reciprocal  *bool    `json:"reciprocal,omitempty"` // nil means the default (create)
	LineNum     int      `json:"-"`                    // Line number in source file (set by parser)
}

// Parser defines the interface for parsing relationships from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawRelationship, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
