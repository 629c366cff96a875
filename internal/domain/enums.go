package domain

import "fmt"

// PhaseCode identifies one of the four macro-stages of the methodology.
type PhaseCode string

const (
	PhaseInception    PhaseCode = "Inception"
	PhaseElaboration  PhaseCode = "Elaboration"
	PhaseConstruction PhaseCode = "Construction"
	PhaseTransition   PhaseCode = "Transition"
)

// PhaseCodes lists the phase codes in canonical order.
var PhaseCodes = []PhaseCode{PhaseInception, PhaseElaboration, PhaseConstruction, PhaseTransition}

// Ordinal returns the 1-based canonical position of the code, or 0 if the
// code is unknown.
func (c PhaseCode) Ordinal() int {
	for i, code := range PhaseCodes {
		if code == c {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether c is one of the four phase codes.
func (c PhaseCode) Valid() bool { return c.Ordinal() > 0 }

// ParsePhaseCode converts a textual name into a PhaseCode.
func ParsePhaseCode(s string) (PhaseCode, error) {
	c := PhaseCode(s)
	if !c.Valid() {
		return "", Validationf("unknown phase code %q", s)
	}
	return c, nil
}

// ProjectState is the lifecycle state of a Project.
type ProjectState string

const (
	ProjectPlanned   ProjectState = "Planned"
	ProjectActive    ProjectState = "Active"
	ProjectOnHold    ProjectState = "OnHold"
	ProjectCompleted ProjectState = "Completed"
	ProjectCancelled ProjectState = "Cancelled"
)

var projectStates = []ProjectState{ProjectPlanned, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled}

// Valid reports whether s is a known project state.
func (s ProjectState) Valid() bool { return contains(projectStates, s) }

// Terminal reports whether no further work is expected in this state.
func (s ProjectState) Terminal() bool { return s == ProjectCompleted || s == ProjectCancelled }

// PhaseState is the lifecycle state of a Phase.
type PhaseState string

const (
	PhaseNotStarted PhaseState = "NotStarted"
	PhaseInProgress PhaseState = "InProgress"
	PhaseCompleted  PhaseState = "Completed"
)

var phaseStates = []PhaseState{PhaseNotStarted, PhaseInProgress, PhaseCompleted}

// Valid reports whether s is a known phase state.
func (s PhaseState) Valid() bool { return contains(phaseStates, s) }

// Terminal reports whether the phase is closed.
func (s PhaseState) Terminal() bool { return s == PhaseCompleted }

// ItemType tags a PhaseItem as an Iteration or a Microincrement.
type ItemType string

const (
	ItemIteration      ItemType = "Iteration"
	ItemMicroincrement ItemType = "Microincrement"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool { return t == ItemIteration || t == ItemMicroincrement }

// ItemState is the lifecycle state of a PhaseItem.
type ItemState string

const (
	ItemPlanned    ItemState = "Planned"
	ItemInProgress ItemState = "InProgress"
	ItemDone       ItemState = "Done"
	ItemCancelled  ItemState = "Cancelled"
)

var itemStates = []ItemState{ItemPlanned, ItemInProgress, ItemDone, ItemCancelled}

// Valid reports whether s is a known item state.
func (s ItemState) Valid() bool { return contains(itemStates, s) }

// Terminal reports whether the item is closed.
func (s ItemState) Terminal() bool { return s == ItemDone || s == ItemCancelled }

// ParseProjectState converts a textual name into a ProjectState.
func ParseProjectState(s string) (ProjectState, error) {
	st := ProjectState(s)
	if !st.Valid() {
		return "", Validationf("unknown project state %q", s)
	}
	return st, nil
}

// ParsePhaseState converts a textual name into a PhaseState.
func ParsePhaseState(s string) (PhaseState, error) {
	st := PhaseState(s)
	if !st.Valid() {
		return "", Validationf("unknown phase state %q", s)
	}
	return st, nil
}

// ParseItemState converts a textual name into an ItemState.
func ParseItemState(s string) (ItemState, error) {
	st := ItemState(s)
	if !st.Valid() {
		return "", Validationf("unknown item state %q", s)
	}
	return st, nil
}

// ParseItemType converts a textual name into an ItemType.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown item type %q", s)
	}
	return t, nil
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
