package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses relationships from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed relationships.
// Expected columns: from, to, type, description, strength, since, notes, reciprocal
func (p *CSVParser) Parse(r io.Reader) ([]RawRelationship, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}

	requiredCols := []string{"from", "to", "type"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawRelationships.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawRelationship, error) {
	var rels []RawRelationship
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rel, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}

	return rels, nil
}

// parseRecord converts a CSV record to a RawRelationship.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawRelationship, error) {
	rel := RawRelationship{
		From:        getColumn(record, colIndex, "from"),
		To:          getColumn(record, colIndex, "to"),
		Type:        getColumn(record, colIndex, "type"),
		Description: getColumn(record, colIndex, "description"),
		Since:       getColumn(record, colIndex, "since"),
		Notes:       getColumn(record, colIndex, "notes"),
		LineNum:     lineNum,
	}

	if s := getColumn(record, colIndex, "strength"); s != "" {
		strength, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return RawRelationship{}, fmt.Errorf("line %d: invalid strength value %q: %w", lineNum, s, err)
		}
		rel.Strength = &strength
	}

	if s := getColumn(record, colIndex, "reciprocal"); s != "" {
		reciprocal, err := parseFlag(s)
		if err != nil {
			return RawRelationship{}, fmt.Errorf("line %d: invalid reciprocal value %q: %w", lineNum, s, err)
		}
		rel.Reciprocal = &reciprocal
	}

	return rel, nil
}

// parseFlag accepts yes/no/y/n in any case, then anything strconv.ParseBool does.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
