package services

import (
	"github.com/ersonp/kin-core/internal/domain/entities"
)

// SideEffect is the Person-level change implied by a relationship.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	// SideEffectSetSpouse links source and target as spouses of each other.
	SideEffectSetSpouse
	// SideEffectSetFather sets target.FatherID = source.
	SideEffectSetFather
	// SideEffectSetMother sets target.MotherID = source.
	SideEffectSetMother
)

// String returns a readable name for the side effect.
func (s SideEffect) String() string {
	switch s {
	case SideEffectSetSpouse:
		return "set_spouse"
	case SideEffectSetFather:
		return "set_father"
	case SideEffectSetMother:
		return "set_mother"
	default:
		return "none"
	}
}

// ReciprocalSpec describes the counterpart edge (target -> source) and the
// Person update a relationship type implies.
type ReciprocalSpec struct {
	ReciprocalType string
	SideEffect     SideEffect
}

// Classify maps a requested relationship type to its reciprocal. fromGender
// is the gender of the edge's source Person and only matters for "child".
// Returns nil for types with no reciprocal.
func Classify(relType string, fromGender entities.Gender) *ReciprocalSpec {
	switch entities.KindOf(relType) {
	case entities.KindSpouse:
		return &ReciprocalSpec{ReciprocalType: entities.TypeSpouse, SideEffect: SideEffectSetSpouse}
	case entities.KindFather:
		return &ReciprocalSpec{ReciprocalType: entities.TypeChild, SideEffect: SideEffectSetFather}
	case entities.KindMother:
		return &ReciprocalSpec{ReciprocalType: entities.TypeChild, SideEffect: SideEffectSetMother}
	case entities.KindChild:
		// The source is the parent; the reciprocal names the source's role.
		if fromGender == entities.GenderFemale {
			return &ReciprocalSpec{ReciprocalType: entities.TypeMother, SideEffect: SideEffectSetMother}
		}
		return &ReciprocalSpec{ReciprocalType: entities.TypeFather, SideEffect: SideEffectSetFather}
	case entities.KindSibling:
		return &ReciprocalSpec{ReciprocalType: entities.TypeSibling, SideEffect: SideEffectNone}
	case entities.KindOther:
		return nil
	default:
		return nil
	}
}
