package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemVariant distinguishes Iterations from Microincrements. Only an
// Microincrement carries a parent, so an Iteration with a parent cannot be
// expressed.
type ItemVariant interface {
	Type() ItemType
	// ParentIteration returns the parent iteration id for microincrements.
	ParentIteration() (uuid.UUID, bool)
	sealed()
}

// Iteration is a time-boxed unit of work inside a Phase.
type Iteration struct{}

// Type implements ItemVariant.
func (Iteration) Type() ItemType { return ItemIteration }

// ParentIteration implements ItemVariant; iterations have no parent.
func (Iteration) ParentIteration() (uuid.UUID, bool) { return uuid.Nil, false }

func (Iteration) sealed() {}

// Microincrement is a small increment nested in exactly one Iteration.
type Microincrement struct {
	Parent uuid.UUID
}

// Type implements ItemVariant.
func (Microincrement) Type() ItemType { return ItemMicroincrement }

// ParentIteration implements ItemVariant.
func (m Microincrement) ParentIteration() (uuid.UUID, bool) { return m.Parent, true }

func (Microincrement) sealed() {}

// VariantFor rebuilds an ItemVariant from its persisted columns.
func VariantFor(t ItemType, parent *uuid.UUID) (ItemVariant, error) {
	switch t {
	case ItemIteration:
		if parent != nil {
			return nil, Validationf("iteration cannot have a parent")
		}
		return Iteration{}, nil
	case ItemMicroincrement:
		if parent == nil {
			return nil, Validationf("microincrement requires a parent iteration")
		}
		return Microincrement{Parent: *parent}, nil
	default:
		return nil, Validationf("unknown item type %q", t)
	}
}

// PhaseItem is an Iteration or Microincrement inside a Phase.
type PhaseItem struct {
	ID          uuid.UUID
	PhaseID     uuid.UUID
	Variant     ItemVariant
	State       ItemState
	Name        string
	Number      int
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}

// Type returns the item's type tag.
func (i PhaseItem) Type() ItemType { return i.Variant.Type() }

// ParentID returns the parent iteration id, or nil for iterations.
func (i PhaseItem) ParentID() *uuid.UUID {
	if p, ok := i.Variant.ParentIteration(); ok {
		return &p
	}
	return nil
}
