package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliEnv runs commands against one database file with a cheap bcrypt cost.
type cliEnv struct {
	t      *testing.T
	db     string
	config string
	stdin  string // fed to the next commands when set
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "phasetrack.yaml")
	require.NoError(t, os.WriteFile(config, []byte("secrets:\n  bcrypt_cost: 4\nlog:\n  level: error\n"), 0o644))
	return &cliEnv{t: t, db: filepath.Join(dir, "phasetrack.db"), config: config}
}

// exec runs one command and returns stdout.
func (e *cliEnv) exec(format string, args ...string) (string, error) {
	e.t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(e.stdin))
	cmd.SetArgs(append([]string{"--db", e.db, "--config", e.config, "--format", format}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// ok runs a JSON command that must succeed and decodes its data into v.
func (e *cliEnv) ok(v any, args ...string) {
	e.t.Helper()
	out, err := e.exec("json", args...)
	require.NoError(e.t, err, "output: %s", out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(e.t, "ok", resp.Status)
	if v != nil {
		require.NoError(e.t, json.Unmarshal(resp.Data, v))
	}
}

// fail runs a JSON command that must fail and returns the reported error.
func (e *cliEnv) fail(args ...string) (CLIError, int) {
	e.t.Helper()
	out, err := e.exec("json", args...)
	require.Error(e.t, err)

	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(e.t, "error", resp.Status)
	require.NotNil(e.t, resp.Error)
	return *resp.Error, GetExitCode(err)
}

func (e *cliEnv) applyPlan() {
	e.t.Helper()
	e.ok(nil, "plan", "apply", filepath.Join("..", "plan", "testdata", "proj1.yaml"))
}

func TestCLI_Users(t *testing.T) {
	env := newCLIEnv(t)

	var u UserView
	env.ok(&u, "user", "create", "alice", "--password", "s3cret")
	assert.Equal(t, "alice", u.Username)

	cliErr, exit := env.fail("user", "create", "alice", "--password", "other")
	assert.Equal(t, ErrCodeConflict, cliErr.Code)
	assert.Equal(t, ExitFailure, exit)

	env.ok(&u, "user", "login", "alice", "--password", "s3cret")

	wrong, _ := env.fail("user", "login", "alice", "--password", "nope")
	unknown, _ := env.fail("user", "login", "mallory", "--password", "nope")
	assert.Equal(t, ErrCodeUnauthenticated, wrong.Code)
	assert.Equal(t, wrong, unknown)

	env.ok(nil, "user", "passwd", "alice", "--old", "s3cret", "--new", "n3w")
	env.ok(&u, "user", "show", "alice")
	assert.NotNil(t, u.PasswordChangedAt)
	env.ok(nil, "user", "login", "alice", "--password", "n3w")
}

func TestCLI_PasswordSources(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv(EnvPassword, "")
	os.Unsetenv(EnvPassword)
	t.Setenv(EnvNewPassword, "")
	os.Unsetenv(EnvNewPassword)

	cliErr, exit := env.fail("user", "create", "alice")
	assert.Equal(t, ErrCodeInput, cliErr.Code)
	assert.Contains(t, cliErr.Message, "--password-stdin")
	assert.Equal(t, ExitFailure, exit)

	env.stdin = "s3cret\n"
	env.ok(nil, "user", "create", "alice", "--password-stdin")
	env.stdin = ""
	env.ok(nil, "user", "login", "alice", "--password", "s3cret")

	t.Setenv(EnvPassword, "s3cret")
	env.ok(nil, "user", "login", "alice")

	env.stdin = "s3cret\nn3w\n"
	env.ok(nil, "user", "passwd", "alice", "--password-stdin")
	env.stdin = ""

	t.Setenv(EnvPassword, "n3w")
	t.Setenv(EnvNewPassword, "n3wer")
	env.ok(nil, "user", "passwd", "alice")
	env.ok(nil, "user", "login", "alice", "--password", "n3wer")

	wrong, _ := env.fail("user", "login", "alice")
	assert.Equal(t, ErrCodeUnauthenticated, wrong.Code)
}

func TestCLI_ProjectLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	env.ok(nil, "user", "create", "alice", "--password", "s3cret")

	var p struct {
		Identifier string
		State      string
	}
	env.ok(&p, "project", "create", "PROJ-1", "--name", "Tracker", "--start", "2025-01-06", "--owner", "alice")
	assert.Equal(t, "PROJ-1", p.Identifier)
	assert.Equal(t, "Planned", p.State)

	var phases []struct {
		Code  string
		Order int
	}
	env.ok(&phases, "phase", "init", "PROJ-1")
	require.Len(t, phases, 4)

	env.ok(&phases, "phase", "list", "PROJ-1")
	require.Len(t, phases, 4)
	assert.Equal(t, "Inception", phases[0].Code)
	assert.Equal(t, "Transition", phases[3].Code)

	cliErr, _ := env.fail("phase", "init", "PROJ-1")
	assert.Equal(t, ErrCodeConflict, cliErr.Code)

	env.ok(&p, "project", "state", "PROJ-1", "Active")
	assert.Equal(t, "Active", p.State)

	cliErr, _ = env.fail("project", "show", "NOPE")
	assert.Equal(t, ErrCodeNotFound, cliErr.Code)

	cliErr, exit := env.fail("project", "create", "PROJ-2", "--name", "X", "--start", "06/01/2025", "--owner", "alice")
	assert.Equal(t, ErrCodeValidation, cliErr.Code)
	assert.Equal(t, ExitFailure, exit)
}

func TestCLI_PlanApplyAndReports(t *testing.T) {
	env := newCLIEnv(t)

	var res struct {
		Users       int `json:"users"`
		Projects    int `json:"projects"`
		Items       int `json:"items"`
		Versions    int `json:"versions"`
		Assignments int `json:"assignments"`
	}
	env.ok(&res, "plan", "apply", filepath.Join("..", "plan", "testdata", "proj1.yaml"))
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 1, res.Projects)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 2, res.Versions)
	assert.Equal(t, 2, res.Assignments)

	out, err := env.exec("text", "report", "tree", "PROJ-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Project PROJ-1: Phase tracker [Active]")
	assert.Contains(t, out, "Microincrement 1.1: Draft risks [Planned]")
	assert.Contains(t, out, "[x] Vision")

	out, err = env.exec("text", "report", "completeness", "PROJ-1")
	require.NoError(t, err)
	assert.Contains(t, out, "missing: Risk List")

	var allowed map[string]bool
	env.ok(&allowed, "member", "can", "PROJ-1", "bob", "approve_artefacts")
	assert.False(t, allowed["allowed"])
	env.ok(&allowed, "member", "can", "PROJ-1", "alice", "approve_artefacts")
	assert.True(t, allowed["allowed"])
}

func TestCLI_PlanValidate(t *testing.T) {
	env := newCLIEnv(t)

	var sum PlanSummary
	env.ok(&sum, "plan", "validate", filepath.Join("..", "plan", "testdata", "proj1.yaml"))
	assert.Equal(t, 2, sum.Users)
	assert.Equal(t, 1, sum.Projects)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("projects:\n  - identifier: P\n    colour: blue\n"), 0o644))
	cliErr, exit := env.fail("plan", "validate", bad)
	assert.Equal(t, ErrCodePlan, cliErr.Code)
	assert.Equal(t, ExitFailure, exit)
}

func TestCLI_ItemsAndDocuments(t *testing.T) {
	env := newCLIEnv(t)
	env.applyPlan()

	var items []ItemView
	env.ok(&items, "item", "list", "PROJ-1", "Inception")
	require.Len(t, items, 2)
	iter := items[0]
	assert.Equal(t, "Iteration 1", iter.Name)
	require.NotNil(t, items[1].ParentID)
	assert.Equal(t, iter.ID, *items[1].ParentID)

	var micro ItemView
	env.ok(&micro, "item", "microincrement", iter.ID.String(), "--name", "Spike", "--by", "bob")
	assert.Equal(t, 2, micro.Number)

	cliErr, _ := env.fail("item", "microincrement", micro.ID.String(), "--name", "Nested", "--by", "bob")
	assert.Equal(t, ErrCodeValidation, cliErr.Code)

	var docs []struct {
		ID                string
		Title             string
		LastVersionNumber int
	}
	env.ok(&docs, "doc", "list", iter.ID.String())
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].LastVersionNumber)

	var v VersionView
	env.ok(&v, "doc", "version", "add", docs[0].ID, "--by", "alice", "--content", "# Vision v3", "--ext", "md")
	assert.Equal(t, 3, v.VersionNumber)
	assert.Equal(t, len("# Vision v3"), v.Size)

	payload := filepath.Join(t.TempDir(), "vision.md")
	env.ok(&v, "doc", "version", "get", docs[0].ID, "-o", payload)
	assert.Equal(t, 3, v.VersionNumber)
	data, err := os.ReadFile(payload)
	require.NoError(t, err)
	assert.Equal(t, "# Vision v3", string(data))

	env.ok(&v, "doc", "version", "observe", docs[0].ID, "1", "superseded")
	assert.Equal(t, "superseded", v.Observations)

	cliErr, _ = env.fail("doc", "version", "get", docs[0].ID, "9")
	assert.Equal(t, ErrCodeNotFound, cliErr.Code)
}

func TestCLI_Artefacts(t *testing.T) {
	env := newCLIEnv(t)
	env.applyPlan()

	env.ok(nil, "artefact", "register", "PROJ-1", "Inception", "Risk List")

	var rows []struct {
		Artefact   string `json:"artefact"`
		Registered bool   `json:"registered"`
	}
	env.ok(&rows, "artefact", "phase", "PROJ-1", "Inception")
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.Registered, r.Artefact)
	}

	cliErr, _ := env.fail("artefact", "assign", "PROJ-1", "Inception", "Vision")
	assert.Equal(t, ErrCodeConflict, cliErr.Code)

	env.ok(nil, "artefact", "unassign", "PROJ-1", "Inception", "Vision")
	env.ok(&rows, "artefact", "phase", "PROJ-1", "Inception")
	assert.Len(t, rows, 1)
}

func TestCLI_ArtifactHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.applyPlan()

	var a struct {
		ID        int64
		Mandatory bool
	}
	env.ok(&a, "artifact", "create", "PROJ-1", "--name", "Build script", "--phase", "Construction", "--mandatory")
	assert.True(t, a.Mandatory)
	id := strconv.FormatInt(a.ID, 10)

	env.ok(nil, "artifact", "add-version", id, "--by", "alice", "--content", "make all")
	env.ok(nil, "artifact", "add-version", id, "--by", "bob", "--content", "make all test", "--notes", "add tests")

	var history []ArtifactVersionView
	env.ok(&history, "artifact", "history", id)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].VersionNumber)
	assert.Equal(t, "add tests", history[0].Notes)
	assert.Equal(t, 1, history[1].VersionNumber)

	out, err := env.exec("text", "artifact", "get", id, "1")
	require.NoError(t, err)
	assert.Equal(t, "make all", out)

	cliErr, _ := env.fail("artifact", "history", "abc")
	assert.Equal(t, ErrCodeValidation, cliErr.Code)
}

func TestCLI_ConfigErrors(t *testing.T) {
	env := newCLIEnv(t)
	env.config = filepath.Join(t.TempDir(), "missing.yaml")

	cliErr, exit := env.fail("project", "list")
	assert.Equal(t, ErrCodeConfig, cliErr.Code)
	assert.Equal(t, ExitCommandError, exit)

	env = newCLIEnv(t)
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--db", env.db, "--config", env.config, "--driver", "oracle", "--format", "json", "project", "list"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), ErrCodeConfig)
}

func TestCLI_MetricsFile(t *testing.T) {
	env := newCLIEnv(t)
	metrics := filepath.Join(t.TempDir(), "phasetrack.prom")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", env.db, "--config", env.config, "--metrics-file", metrics,
		"user", "create", "alice", "--password", "s3cret"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "phasetrack_operations_total")
	assert.Contains(t, string(data), `operation="CreateUser"`)
}
