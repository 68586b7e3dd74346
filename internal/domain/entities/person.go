package entities

import (
	"fmt"
	"strings"
	"time"
)

// Gender is the recorded gender of a Person.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderUnspecified Gender = "UNSPECIFIED"
)

// IsValid reports whether g is one of the known genders.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnspecified:
		return true
	default:
		return false
	}
}

// ParseGender converts user input (case-insensitive, "m"/"f" shorthands accepted)
// into a Gender. Empty input yields GenderUnspecified.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	case "", "unspecified", "u":
		return GenderUnspecified, nil
	default:
		return "", fmt.Errorf("invalid gender %q (valid: male, female, unspecified): %w", s, ErrInvalidOperation)
	}
}

// Person is a stakeholder node in the relationship graph.
// SpouseID, FatherID and MotherID are denormalized shortcut pointers; an empty
// string means the pointer is unset.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    Gender    `json:"gender"`
	SpouseID  string    `json:"spouse_id,omitempty"`
	FatherID  string    `json:"father_id,omitempty"`
	MotherID  string    `json:"mother_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IDChange describes an update to one of a Person's reference fields.
// The zero value leaves the field untouched.
type IDChange struct {
	Set bool
	ID  string // empty clears the field
}

// SetID returns a change that points the field at id.
func SetID(id string) IDChange {
	return IDChange{Set: true, ID: id}
}

// ClearID returns a change that unsets the field.
func ClearID() IDChange {
	return IDChange{Set: true}
}

// PersonPatch is a partial update of a Person. Nil pointers and zero IDChanges
// are left untouched.
type PersonPatch struct {
	Name     *string
	Gender   *Gender
	SpouseID IDChange
	FatherID IDChange
	MotherID IDChange
}

// IsEmpty reports whether the patch changes nothing.
func (p PersonPatch) IsEmpty() bool {
	return p.Name == nil && p.Gender == nil && !p.SpouseID.Set && !p.FatherID.Set && !p.MotherID.Set
}

// Apply writes the patch onto person.
func (p PersonPatch) Apply(person *Person) {
	if p.Name != nil {
		person.Name = *p.Name
	}
	if p.Gender != nil {
		person.Gender = *p.Gender
	}
	if p.SpouseID.Set {
		person.SpouseID = p.SpouseID.ID
	}
	if p.FatherID.Set {
		person.FatherID = p.FatherID.ID
	}
	if p.MotherID.Set {
		person.MotherID = p.MotherID.ID
	}
}

// PersonRef names one of the Person reference fields.
type PersonRef string

const (
	RefSpouse PersonRef = "spouse_id"
	RefFather PersonRef = "father_id"
	RefMother PersonRef = "mother_id"
)

// Get returns the value of the reference field on person.
func (r PersonRef) Get(person *Person) string {
	switch r {
	case RefSpouse:
		return person.SpouseID
	case RefFather:
		return person.FatherID
	case RefMother:
		return person.MotherID
	default:
		return ""
	}
}

// Clear returns a patch that unsets the reference field.
func (r PersonRef) Clear() PersonPatch {
	var patch PersonPatch
	switch r {
	case RefSpouse:
		patch.SpouseID = ClearID()
	case RefFather:
		patch.FatherID = ClearID()
	case RefMother:
		patch.MotherID = ClearID()
	}
	return patch
}

// PersonFilter selects Persons whose Ref field equals Equals.
type PersonFilter struct {
	Ref    PersonRef
	Equals string
}

// Matches reports whether person satisfies the filter.
func (f PersonFilter) Matches(person *Person) bool {
	return f.Equals != "" && f.Ref.Get(person) == f.Equals
}
