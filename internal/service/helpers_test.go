package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/secrets"
	"github.com/roach88/phasetrack/internal/testutil"
)

// newTestService returns a Service over a fresh sqlite store with a
// deterministic clock and id source and a cheap hasher.
func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs()),
		WithHasher(secrets.Bcrypt{Cost: bcrypt.MinCost}),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	return New(testutil.NewStore(t), append(base, opts...)...)
}

// fixture is a project with its four phases and an owner.
type fixture struct {
	owner   domain.User
	project domain.Project
	phases  map[domain.PhaseCode]domain.Phase
}

func newFixture(t *testing.T, s *Service, identifier string) fixture {
	t.Helper()
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "owner-"+identifier, "pw")
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, NewProject{
		Identifier: identifier,
		Name:       "Project " + identifier,
		StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		OwnerID:    owner.ID,
	})
	require.NoError(t, err)
	phases, err := s.InitializePhases(ctx, p.ID)
	require.NoError(t, err)

	f := fixture{owner: owner, project: p, phases: make(map[domain.PhaseCode]domain.Phase)}
	for _, ph := range phases {
		f.phases[ph.Code] = ph
	}
	return f
}

func (f fixture) inception() domain.Phase {
	return f.phases[domain.PhaseInception]
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}
