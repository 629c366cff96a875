package domain

// Entity names a stateful entity for transition checks.
type Entity string

const (
	EntityProject   Entity = "project"
	EntityPhase     Entity = "phase"
	EntityPhaseItem Entity = "phase item"
)

// TransitionPolicy decides whether a state change is legal. from and to are
// the textual state names; callers have already validated that to is a
// member of the entity's enumeration.
type TransitionPolicy interface {
	CheckTransition(entity Entity, from, to string) error
}

// PermissiveTransitions accepts every change. This is the observed behaviour
// of the existing system, where state changes are unconditional overwrites.
type PermissiveTransitions struct{}

// CheckTransition implements TransitionPolicy.
func (PermissiveTransitions) CheckTransition(Entity, string, string) error { return nil }

var terminalStates = map[Entity]map[string]struct{}{
	EntityProject: {
		string(ProjectCompleted): {},
		string(ProjectCancelled): {},
	},
	EntityPhase: {
		string(PhaseCompleted): {},
	},
	EntityPhaseItem: {
		string(ItemDone):      {},
		string(ItemCancelled): {},
	},
}

// TerminalGuard rejects moving an entity out of a terminal state. Moves
// between non-terminal states and into terminal states are allowed, as is
// re-applying the current state.
type TerminalGuard struct{}

// CheckTransition implements TransitionPolicy.
func (TerminalGuard) CheckTransition(entity Entity, from, to string) error {
	if from == to {
		return nil
	}
	if _, ok := terminalStates[entity][from]; ok {
		return Validationf("%s in terminal state %s cannot move to %s", entity, from, to)
	}
	return nil
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "permissive":
		return PermissiveTransitions{}, nil
	case "terminal-guard":
		return TerminalGuard{}, nil
	default:
		return nil, Validationf("unknown transition policy %q", name)
	}
}
