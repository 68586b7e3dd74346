// Package entities contains core domain data structures.
package entities

import (
	"strings"
	"time"
)

// Canonical relationship type strings. Types are free-form; these are the ones
// the engine understands and the ones it writes for reciprocal edges.
const (
	TypeSpouse  = "spouse"
	TypeHusband = "husband"
	TypeWife    = "wife"
	TypeFather  = "father"
	TypeMother  = "mother"
	TypeChild   = "child"
	TypeSibling = "sibling"
)

// RelationKind is the closed set of relationship classes the engine knows how
// to keep consistent. Anything unrecognized is KindOther.
type RelationKind int

const (
	KindOther RelationKind = iota
	KindSpouse
	KindFather
	KindMother
	KindChild
	KindSibling
)

// String returns the canonical type string for the kind.
func (k RelationKind) String() string {
	switch k {
	case KindSpouse:
		return TypeSpouse
	case KindFather:
		return TypeFather
	case KindMother:
		return TypeMother
	case KindChild:
		return TypeChild
	case KindSibling:
		return TypeSibling
	default:
		return "other"
	}
}

// NormalizeType lowercases and trims a relationship type for matching.
func NormalizeType(relType string) string {
	return strings.ToLower(strings.TrimSpace(relType))
}

// KindOf classifies a free-form relationship type (case-insensitive).
func KindOf(relType string) RelationKind {
	switch NormalizeType(relType) {
	case TypeSpouse, TypeHusband, TypeWife:
		return KindSpouse
	case TypeFather:
		return KindFather
	case TypeMother:
		return KindMother
	case TypeChild:
		return KindChild
	case TypeSibling:
		return KindSibling
	default:
		return KindOther
	}
}

// SameType reports whether two relationship types are equal for uniqueness purposes.
func SameType(a, b string) bool {
	return NormalizeType(a) == NormalizeType(b)
}

// RelationshipAttrs are the caller-supplied attributes of an edge.
type RelationshipAttrs struct {
	Description string     `json:"description,omitempty"`
	Strength    float64    `json:"strength"`
	Since       *time.Time `json:"since,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Relationship represents a directed, typed edge between two Persons.
// Type is stored as supplied; (FromID, ToID, Type) is unique.
type Relationship struct {
	ID          string     `json:"id"`
	FromID      string     `json:"from_id"`
	ToID        string     `json:"to_id"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Strength    float64    `json:"strength"`
	Since       *time.Time `json:"since,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	// ReciprocalSuppressed is set when the edge was created without its
	// reciprocal; the engine does not expect a counterpart for it.
	ReciprocalSuppressed bool      `json:"reciprocal_suppressed,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Kind returns the relationship class of the edge.
func (r *Relationship) Kind() RelationKind {
	return KindOf(r.Type)
}

// Touches reports whether personID is either endpoint of the edge.
func (r *Relationship) Touches(personID string) bool {
	return r.FromID == personID || r.ToID == personID
}
