package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertItem inserts a phase item. A duplicate number within the same
// numbering scope returns ErrUniqueViolation.
func (q *Queries) InsertItem(ctx context.Context, it domain.PhaseItem) error {
	_, err := q.exec(ctx, `
		INSERT INTO phase_items
		(Id, ProjectPhaseId, Type, State, Name, Number, ParentIterationId, Description, StartDate, EndDate, CreatedBy, CreatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.ID,
		it.PhaseID,
		string(it.Type()),
		string(it.State),
		it.Name,
		it.Number,
		nullUUID(it.ParentID()),
		nullString(it.Description),
		nullTime(it.StartDate),
		nullTime(it.EndDate),
		it.CreatedBy,
		formatTime(it.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

const itemColumns = `Id, ProjectPhaseId, Type, State, Name, Number, ParentIterationId, Description, StartDate, EndDate, CreatedBy, CreatedAt`

func scanItem(s scanner) (domain.PhaseItem, error) {
	var it domain.PhaseItem
	var typ, state, created string
	var parent uuid.NullUUID
	var desc, start, end sql.NullString
	if err := s.Scan(&it.ID, &it.PhaseID, &typ, &state, &it.Name, &it.Number, &parent,
		&desc, &start, &end, &it.CreatedBy, &created); err != nil {
		return domain.PhaseItem{}, err
	}
	variant, err := domain.VariantFor(domain.ItemType(typ), uuidPtr(parent))
	if err != nil {
		return domain.PhaseItem{}, err
	}
	it.Variant = variant
	it.State = domain.ItemState(state)
	it.Description = desc.String
	if it.StartDate, err = parseNullTime(start); err != nil {
		return domain.PhaseItem{}, err
	}
	if it.EndDate, err = parseNullTime(end); err != nil {
		return domain.PhaseItem{}, err
	}
	if it.CreatedAt, err = parseTime(created); err != nil {
		return domain.PhaseItem{}, err
	}
	return it, nil
}

// GetItem retrieves a phase item by id.
func (q *Queries) GetItem(ctx context.Context, id uuid.UUID) (domain.PhaseItem, error) {
	it, err := scanItem(q.queryRow(ctx, `SELECT `+itemColumns+` FROM phase_items WHERE Id = ?`, id))
	if err != nil {
		return domain.PhaseItem{}, notFound(err, "get item")
	}
	return it, nil
}

// ListItems returns a phase's items: iterations by number, then
// microincrements grouped by their parent's number.
func (q *Queries) ListItems(ctx context.Context, phaseID uuid.UUID) ([]domain.PhaseItem, error) {
	rows, err := q.query(ctx, `
		SELECT `+itemColumns+` FROM phase_items
		WHERE ProjectPhaseId = ?
		ORDER BY Type ASC,
			COALESCE((SELECT p.Number FROM phase_items p WHERE p.Id = phase_items.ParentIterationId), 0) ASC,
			Number ASC, Id ASC
	`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return collect(rows, "item", scanItem)
}

// ListChildren returns the microincrements of an iteration by number.
func (q *Queries) ListChildren(ctx context.Context, iterationID uuid.UUID) ([]domain.PhaseItem, error) {
	rows, err := q.query(ctx, `
		SELECT `+itemColumns+` FROM phase_items
		WHERE ParentIterationId = ?
		ORDER BY Number ASC, Id ASC
	`, iterationID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return collect(rows, "item", scanItem)
}

// CountChildren returns how many microincrements reference an iteration.
func (q *Queries) CountChildren(ctx context.Context, iterationID uuid.UUID) (int, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM phase_items WHERE ParentIterationId = ?`, iterationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// NextItemNumber returns max(Number)+1 within the numbering scope of an
// item: the phase for iterations, the parent iteration for microincrements.
func (q *Queries) NextItemNumber(ctx context.Context, phaseID uuid.UUID, variant domain.ItemVariant) (int, error) {
	var max int
	var err error
	if parent, ok := variant.ParentIteration(); ok {
		err = q.queryRow(ctx, `
			SELECT COALESCE(MAX(Number), 0) FROM phase_items WHERE ParentIterationId = ?
		`, parent).Scan(&max)
	} else {
		err = q.queryRow(ctx, `
			SELECT COALESCE(MAX(Number), 0) FROM phase_items WHERE ProjectPhaseId = ? AND Type = ?
		`, phaseID, string(domain.ItemIteration)).Scan(&max)
	}
	if err != nil {
		return 0, fmt.Errorf("next item number: %w", err)
	}
	return max + 1, nil
}

// UpdateItem overwrites an item's mutable columns. Type, parent, phase,
// number and creator are fixed at creation.
func (q *Queries) UpdateItem(ctx context.Context, it domain.PhaseItem) error {
	res, err := q.exec(ctx, `
		UPDATE phase_items SET Name = ?, State = ?, Description = ?, StartDate = ?, EndDate = ?
		WHERE Id = ?
	`, it.Name, string(it.State), nullString(it.Description), nullTime(it.StartDate), nullTime(it.EndDate), it.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return requireAffected(res, "update item")
}

// DeleteItem deletes an item. Its members and documents cascade; an
// iteration that still has microincrements returns ErrForeignKeyViolation.
func (q *Queries) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM phase_items WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return requireAffected(res, "delete item")
}

// InsertItemMember inserts a phase_item_users row.
func (q *Queries) InsertItemMember(ctx context.Context, m domain.ItemMember) error {
	_, err := q.exec(ctx, `INSERT INTO phase_item_users (PhaseItemId, UserId, Role) VALUES (?, ?, ?)`,
		m.PhaseItemID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("insert item member: %w", err)
	}
	return nil
}

func scanItemMember(s scanner) (domain.ItemMember, error) {
	var m domain.ItemMember
	if err := s.Scan(&m.PhaseItemID, &m.UserID, &m.Role); err != nil {
		return domain.ItemMember{}, err
	}
	return m, nil
}

// GetItemMember retrieves a phase_item_users row by key.
func (q *Queries) GetItemMember(ctx context.Context, k domain.ItemMemberKey) (domain.ItemMember, error) {
	m, err := scanItemMember(q.queryRow(ctx, `
		SELECT PhaseItemId, UserId, Role FROM phase_item_users WHERE PhaseItemId = ? AND UserId = ?
	`, k.PhaseItemID, k.UserID))
	if err != nil {
		return domain.ItemMember{}, notFound(err, "get item member")
	}
	return m, nil
}

// ListItemMembers returns the members of an item.
func (q *Queries) ListItemMembers(ctx context.Context, itemID uuid.UUID) ([]domain.ItemMember, error) {
	rows, err := q.query(ctx, `
		SELECT PhaseItemId, UserId, Role FROM phase_item_users WHERE PhaseItemId = ? ORDER BY Role ASC, UserId ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query item members: %w", err)
	}
	return collect(rows, "item member", scanItemMember)
}

// DeleteItemMember deletes a phase_item_users row.
func (q *Queries) DeleteItemMember(ctx context.Context, k domain.ItemMemberKey) error {
	res, err := q.exec(ctx, `DELETE FROM phase_item_users WHERE PhaseItemId = ? AND UserId = ?`, k.PhaseItemID, k.UserID)
	if err != nil {
		return fmt.Errorf("delete item member: %w", err)
	}
	return requireAffected(res, "delete item member")
}
