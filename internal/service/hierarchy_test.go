package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/domain"
)

func TestCreateProject(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "alice", "pw")
	require.NoError(t, err)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	p, err := s.CreateProject(ctx, NewProject{Identifier: "PROJ-1", Name: "First", StartDate: start, OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectPlanned, p.State)

	got, err := s.GetProjectByIdentifier(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, start.Equal(got.StartDate))

	tests := []struct {
		name string
		in   NewProject
		kind domain.ErrorKind
	}{
		{"duplicate identifier", NewProject{Identifier: "PROJ-1", Name: "x", StartDate: start, OwnerID: owner.ID}, domain.KindConflict},
		{"blank identifier", NewProject{Identifier: " ", Name: "x", StartDate: start, OwnerID: owner.ID}, domain.KindValidation},
		{"blank name", NewProject{Identifier: "P2", Name: "", StartDate: start, OwnerID: owner.ID}, domain.KindValidation},
		{"no start date", NewProject{Identifier: "P2", Name: "x", OwnerID: owner.ID}, domain.KindValidation},
		{"unknown owner", NewProject{Identifier: "P2", Name: "x", StartDate: start, OwnerID: uuid.New()}, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateProject(ctx, tt.in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestUpdateProjectDetails(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	p, err := s.UpdateProjectDetails(ctx, f.project.ID, ProjectDetails{Name: "Renamed", Description: "d", StartDate: start})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, f.project.Identifier, p.Identifier)
	assert.Equal(t, f.owner.ID, p.OwnerID)
	assert.True(t, p.UpdatedAt.After(f.project.UpdatedAt))
}

func TestInitializePhases(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	phases, err := s.ListPhases(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, phases, 4)
	for i, ph := range phases {
		assert.Equal(t, domain.PhaseCodes[i], ph.Code)
		assert.Equal(t, i+1, ph.Order)
		assert.Equal(t, domain.PhaseNotStarted, ph.State)
		assert.Equal(t, string(ph.Code), ph.Name)
	}

	_, err = s.InitializePhases(ctx, f.project.ID)
	requireKind(t, err, domain.KindConflict)

	phases, err = s.ListPhases(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, phases, 4)
}

func TestInitializePhases_AllOrNothing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "alice", "pw")
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, NewProject{Identifier: "P", Name: "P", StartDate: time.Now(), OwnerID: owner.ID})
	require.NoError(t, err)

	_, err = s.CreatePhase(ctx, p.ID, domain.PhaseConstruction, "Build")
	require.NoError(t, err)

	_, err = s.InitializePhases(ctx, p.ID)
	requireKind(t, err, domain.KindConflict)

	phases, err := s.ListPhases(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, phases, 1, "inception and elaboration must be rolled back")
	assert.Equal(t, "Build", phases[0].Name)
}

func TestCreatePhase_DuplicateLeavesExistingUnchanged(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")
	existing := f.inception()

	_, err := s.CreatePhase(ctx, f.project.ID, domain.PhaseInception, "Again")
	requireKind(t, err, domain.KindConflict)

	got, err := s.GetPhase(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	_, err = s.CreatePhase(ctx, f.project.ID, domain.PhaseCode("Retirement"), "")
	requireKind(t, err, domain.KindValidation)
}

func TestCreateItems_NumberingAndParents(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")
	inc := f.inception()

	it1, err := s.CreateIteration(ctx, NewItem{PhaseID: inc.ID, Name: "I1", Number: 1, CreatedBy: f.owner.ID})
	require.NoError(t, err)
	it2, err := s.CreateIteration(ctx, NewItem{PhaseID: inc.ID, Name: "I2", CreatedBy: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, it2.Number)

	_, err = s.CreateIteration(ctx, NewItem{PhaseID: inc.ID, Name: "dup", Number: 1, CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindConflict)

	mi, err := s.CreateMicroincrement(ctx, it1.ID, NewItem{Name: "M1", CreatedBy: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, mi.Number)
	assert.Equal(t, inc.ID, mi.PhaseID)
	assert.Equal(t, domain.ItemMicroincrement, mi.Type())
	require.NotNil(t, mi.ParentID())
	assert.Equal(t, it1.ID, *mi.ParentID())

	// A microincrement cannot parent another microincrement.
	_, err = s.CreateMicroincrement(ctx, mi.ID, NewItem{Name: "nested", CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindValidation)

	// Nor can an iteration from another phase.
	_, err = s.CreateMicroincrement(ctx, it1.ID, NewItem{
		PhaseID: f.phases[domain.PhaseElaboration].ID, Name: "elsewhere", CreatedBy: f.owner.ID,
	})
	requireKind(t, err, domain.KindValidation)

	_, err = s.CreateMicroincrement(ctx, uuid.New(), NewItem{Name: "orphan", CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindNotFound)

	items, err := s.ListItems(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []uuid.UUID{it1.ID, it2.ID, mi.ID}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})

	children, err := s.ChildrenOf(ctx, it1.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, mi.ID, children[0].ID)
}

func TestCreateIteration_Validation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I", StartDate: &start, EndDate: &end, CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindValidation)

	_, err = s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: " ", CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindValidation)

	_, err = s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I", Number: -1, CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindValidation)

	_, err = s.CreateIteration(ctx, NewItem{PhaseID: uuid.New(), Name: "I", CreatedBy: f.owner.ID})
	requireKind(t, err, domain.KindNotFound)

	_, err = s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I", CreatedBy: uuid.New()})
	requireKind(t, err, domain.KindNotFound)
}

func TestUpdateItemDetails(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	it, err := s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I1", CreatedBy: f.owner.ID})
	require.NoError(t, err)

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	it, err = s.UpdateItemDetails(ctx, it.ID, ItemDetails{Name: "Sprint 1", Description: "first", StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprint 1", got.Name)
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
	assert.Equal(t, 1, got.Number)
}

func TestDeleteItem_RestrictedWhileChildrenExist(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	it, err := s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I1", CreatedBy: f.owner.ID})
	require.NoError(t, err)
	mi, err := s.CreateMicroincrement(ctx, it.ID, NewItem{Name: "M1", CreatedBy: f.owner.ID})
	require.NoError(t, err)

	requireKind(t, s.DeleteItem(ctx, it.ID), domain.KindRestricted)
	require.NoError(t, s.DeleteItem(ctx, mi.ID))
	require.NoError(t, s.DeleteItem(ctx, it.ID))

	_, err = s.GetItem(ctx, it.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestStateChanges_PermissiveByDefault(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	p, err := s.SetProjectState(ctx, f.project.ID, domain.ProjectCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectCompleted, p.State)

	p, err = s.SetProjectState(ctx, f.project.ID, domain.ProjectPlanned)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectPlanned, p.State)

	_, err = s.SetProjectState(ctx, f.project.ID, domain.ProjectState("Archived"))
	requireKind(t, err, domain.KindValidation)
}

func TestStateChanges_TerminalGuard(t *testing.T) {
	s := newTestService(t, WithTransitionPolicy(domain.TerminalGuard{}))
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	ph, err := s.SetPhaseState(ctx, f.inception().ID, domain.PhaseCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, ph.State)

	_, err = s.SetPhaseState(ctx, f.inception().ID, domain.PhaseInProgress)
	requireKind(t, err, domain.KindValidation)

	it, err := s.CreateIteration(ctx, NewItem{PhaseID: f.inception().ID, Name: "I1", CreatedBy: f.owner.ID})
	require.NoError(t, err)
	_, err = s.SetItemState(ctx, it.ID, domain.ItemCancelled)
	require.NoError(t, err)
	_, err = s.SetItemState(ctx, it.ID, domain.ItemPlanned)
	requireKind(t, err, domain.KindValidation)

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemCancelled, got.State)
}

func TestRenameAndDeletePhase(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	f := newFixture(t, s, "PROJ-1")

	ph, err := s.RenamePhase(ctx, f.inception().ID, "Kick-off")
	require.NoError(t, err)
	assert.Equal(t, "Kick-off", ph.Name)

	got, err := s.GetPhaseByCode(ctx, f.project.ID, domain.PhaseInception)
	require.NoError(t, err)
	assert.Equal(t, "Kick-off", got.Name)

	it, err := s.CreateIteration(ctx, NewItem{PhaseID: ph.ID, Name: "I1", CreatedBy: f.owner.ID})
	require.NoError(t, err)
	_, err = s.CreateMicroincrement(ctx, it.ID, NewItem{Name: "M1", CreatedBy: f.owner.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeletePhase(ctx, ph.ID))
	_, err = s.GetItem(ctx, it.ID)
	requireKind(t, err, domain.KindNotFound)
	requireKind(t, s.DeletePhase(ctx, ph.ID), domain.KindNotFound)
}
