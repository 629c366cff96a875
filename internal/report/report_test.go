package report

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/plan"
	"github.com/roach88/phasetrack/internal/secrets"
	"github.com/roach88/phasetrack/internal/service"
	"github.com/roach88/phasetrack/internal/testutil"
)

// seed applies testdata/plan.yaml and adds two legacy artifacts.
func seed(t *testing.T) (*service.Service, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := service.New(testutil.NewStore(t),
		service.WithClock(testutil.NewDeterministicClock()),
		service.WithIDGenerator(testutil.NewSequentialIDs()),
		service.WithHasher(secrets.Bcrypt{Cost: bcrypt.MinCost}),
		service.WithLogger(logger),
	)

	p, err := plan.Load("testdata/plan.yaml")
	require.NoError(t, err)
	_, err = plan.NewApplier(svc, logger).Apply(ctx, p)
	require.NoError(t, err)

	proj, err := svc.GetProjectByIdentifier(ctx, "PROJ-1")
	require.NoError(t, err)
	alice, err := svc.GetUserByName(ctx, "alice")
	require.NoError(t, err)

	build, err := svc.CreateArtifact(ctx, service.NewArtifact{ProjectID: proj.ID, Name: "Build script", Mandatory: true})
	require.NoError(t, err)
	for _, content := range []string{"make", "make all"} {
		_, err := svc.CreateArtifactVersion(ctx, build.ID, []byte(content), alice.ID, "")
		require.NoError(t, err)
	}
	_, err = svc.CreateArtifact(ctx, service.NewArtifact{ProjectID: proj.ID, Name: "Notes"})
	require.NoError(t, err)

	return svc, proj.ID
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestWriteTree_Golden(t *testing.T) {
	svc, projectID := seed(t)

	tree, err := BuildTree(context.Background(), svc, projectID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, tree))
	newGoldie(t).Assert(t, "tree", buf.Bytes())
}

func TestWriteCompleteness_Golden(t *testing.T) {
	svc, projectID := seed(t)

	c, err := BuildCompleteness(context.Background(), svc, projectID)
	require.NoError(t, err)
	require.Len(t, c.Phases, 4)
	assert.False(t, c.Phases[0].Summary.Complete())
	assert.True(t, c.Phases[1].Summary.Complete())

	var buf bytes.Buffer
	require.NoError(t, WriteCompleteness(&buf, c))
	newGoldie(t).Assert(t, "completeness", buf.Bytes())
}

func TestBuild_MissingProject(t *testing.T) {
	svc, _ := seed(t)
	ctx := context.Background()

	_, err := BuildTree(ctx, svc, testutil.SeqID(9999))
	assert.True(t, domain.IsNotFound(err), "error: %v", err)

	_, err = BuildCompleteness(ctx, svc, testutil.SeqID(9999))
	assert.True(t, domain.IsNotFound(err), "error: %v", err)
}

func TestDateSpan(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "", dateSpan(nil, nil))
	assert.Equal(t, "from 2025-01-06", dateSpan(&start, nil))
	assert.Equal(t, "until 2025-01-20", dateSpan(nil, &end))
	assert.Equal(t, "2025-01-06 - 2025-01-20", dateSpan(&start, &end))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestWriteTree_PropagatesWriteError(t *testing.T) {
	tree := &Tree{Project: domain.Project{Identifier: "X", StartDate: time.Now()}}
	assert.ErrorIs(t, WriteTree(failingWriter{}, tree), assert.AnError)
}
