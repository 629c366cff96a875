package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateIteration adds an iteration to a phase.
func (s *Service) CreateIteration(ctx context.Context, in NewItem) (domain.PhaseItem, error) {
	var out domain.PhaseItem
	err := s.inTx(ctx, "CreateIteration", func(ctx context.Context, tx *store.Tx) error {
		it, err := s.insertItem(ctx, tx, in, domain.Iteration{})
		out = it
		return err
	})
	return out, err
}

// CreateMicroincrement adds a microincrement under parentID, which must be
// an iteration in the same phase.
func (s *Service) CreateMicroincrement(ctx context.Context, parentID uuid.UUID, in NewItem) (domain.PhaseItem, error) {
	var out domain.PhaseItem
	err := s.inTx(ctx, "CreateMicroincrement", func(ctx context.Context, tx *store.Tx) error {
		parent, err := tx.GetItem(ctx, parentID)
		if err != nil {
			return missing(err, "parent iteration %s", parentID)
		}
		if in.PhaseID == uuid.Nil {
			in.PhaseID = parent.PhaseID
		}
		if parent.Type() != domain.ItemIteration || parent.PhaseID != in.PhaseID {
			return domain.Validationf("parent must be an iteration in the same phase")
		}
		it, err := s.insertItem(ctx, tx, in, domain.Microincrement{Parent: parentID})
		out = it
		return err
	})
	return out, err
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return domain.Validationf("end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Service) insertItem(ctx context.Context, tx *store.Tx, in NewItem, variant domain.ItemVariant) (domain.PhaseItem, error) {
	name, err := domain.RequireName("name", in.Name)
	if err != nil {
		return domain.PhaseItem{}, err
	}
	if in.Number < 0 {
		return domain.PhaseItem{}, domain.Validationf("number must not be negative")
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return domain.PhaseItem{}, err
	}
	if _, err := tx.GetPhase(ctx, in.PhaseID); err != nil {
		return domain.PhaseItem{}, missing(err, "phase %s", in.PhaseID)
	}
	if _, err := tx.GetUser(ctx, in.CreatedBy); err != nil {
		return domain.PhaseItem{}, missing(err, "user %s", in.CreatedBy)
	}

	number := in.Number
	if number == 0 {
		if number, err = tx.NextItemNumber(ctx, in.PhaseID, variant); err != nil {
			return domain.PhaseItem{}, err
		}
	}

	it := domain.PhaseItem{
		ID:          s.ids.NewID(),
		PhaseID:     in.PhaseID,
		Variant:     variant,
		State:       domain.ItemPlanned,
		Name:        name,
		Number:      number,
		Description: strings.TrimSpace(in.Description),
		StartDate:   utcPtr(in.StartDate),
		EndDate:     utcPtr(in.EndDate),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.now(),
	}
	if err := tx.InsertItem(ctx, it); err != nil {
		return domain.PhaseItem{}, conflict(err, "%s %d already exists", strings.ToLower(string(variant.Type())), number)
	}
	return it, nil
}

// GetItem returns a phase item by id.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (domain.PhaseItem, error) {
	return run(ctx, s, "GetItem", func(ctx context.Context) (domain.PhaseItem, error) {
		it, err := s.store.GetItem(ctx, id)
		return it, missing(err, "phase item %s", id)
	})
}

// ListItems returns a phase's iterations by number followed by its
// microincrements grouped by parent.
func (s *Service) ListItems(ctx context.Context, phaseID uuid.UUID) ([]domain.PhaseItem, error) {
	return run(ctx, s, "ListItems", func(ctx context.Context) ([]domain.PhaseItem, error) {
		if _, err := s.store.GetPhase(ctx, phaseID); err != nil {
			return nil, missing(err, "phase %s", phaseID)
		}
		return s.store.ListItems(ctx, phaseID)
	})
}

// ChildrenOf returns an iteration's microincrements by number.
func (s *Service) ChildrenOf(ctx context.Context, iterationID uuid.UUID) ([]domain.PhaseItem, error) {
	return run(ctx, s, "ChildrenOf", func(ctx context.Context) ([]domain.PhaseItem, error) {
		if _, err := s.store.GetItem(ctx, iterationID); err != nil {
			return nil, missing(err, "phase item %s", iterationID)
		}
		return s.store.ListChildren(ctx, iterationID)
	})
}

// UpdateItemDetails edits name, description and dates. Type, parent and
// number are fixed at creation.
func (s *Service) UpdateItemDetails(ctx context.Context, id uuid.UUID, d ItemDetails) (domain.PhaseItem, error) {
	var out domain.PhaseItem
	err := s.inTx(ctx, "UpdateItemDetails", func(ctx context.Context, tx *store.Tx) error {
		name, err := domain.RequireName("name", d.Name)
		if err != nil {
			return err
		}
		if err := validateDates(d.StartDate, d.EndDate); err != nil {
			return err
		}
		it, err := tx.GetItem(ctx, id)
		if err != nil {
			return missing(err, "phase item %s", id)
		}
		it.Name = name
		it.Description = strings.TrimSpace(d.Description)
		it.StartDate = utcPtr(d.StartDate)
		it.EndDate = utcPtr(d.EndDate)
		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// SetItemState moves a phase item to state, subject to the transition policy.
func (s *Service) SetItemState(ctx context.Context, id uuid.UUID, state domain.ItemState) (domain.PhaseItem, error) {
	var out domain.PhaseItem
	err := s.inTx(ctx, "SetItemState", func(ctx context.Context, tx *store.Tx) error {
		if !state.Valid() {
			return domain.Validationf("unknown item state %q", state)
		}
		it, err := tx.GetItem(ctx, id)
		if err != nil {
			return missing(err, "phase item %s", id)
		}
		if err := s.policy.CheckTransition(domain.EntityPhaseItem, string(it.State), string(state)); err != nil {
			return err
		}
		it.State = state
		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// DeleteItem removes a phase item with its members and documents. An
// iteration that still has microincrements is Restricted.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, "DeleteItem", func(ctx context.Context, tx *store.Tx) error {
		it, err := tx.GetItem(ctx, id)
		if err != nil {
			return missing(err, "phase item %s", id)
		}
		n, err := tx.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Restrictedf("iteration %d still has %d microincrements", it.Number, n)
		}
		return restricted(tx.DeleteItem(ctx, id), "phase item %s is still referenced", id)
	})
}
