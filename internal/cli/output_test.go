package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/domain"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeGeneric, "something failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "something failed", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(ErrCodeConfig, "bad config", map[string]string{"file": "phasetrack.yaml"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E002]: bad config")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Emit(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}

		err := f.Emit(map[string]int{"count": 2}, func(io.Writer) error {
			t.Fatal("text renderer must not run in json mode")
			return nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"ok","data":{"count":2}}`, buf.String())
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}

		err := f.Emit(map[string]int{"count": 2}, lines("count=%d", 2))
		require.NoError(t, err)
		assert.Equal(t, "count=2\n", buf.String())
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"validation", domain.Validationf("name is required"), ErrCodeValidation, ExitFailure},
		{"not found", domain.NotFoundf("project %q not found", "X"), ErrCodeNotFound, ExitFailure},
		{"conflict", domain.Conflictf("duplicate"), ErrCodeConflict, ExitFailure},
		{"restricted", domain.Restrictedf("in use"), ErrCodeRestricted, ExitFailure},
		{"unauthenticated", domain.Unauthenticated(), ErrCodeUnauthenticated, ExitFailure},
		{"store failure", domain.StoreFailure(errors.New("disk full")), ErrCodeStoreFailure, ExitCommandError},
		{"wrapped", fmt.Errorf("project %q: %w", "P", domain.Conflictf("dup")), ErrCodeConflict, ExitFailure},
		{"plain", errors.New("boom"), ErrCodeGeneric, ExitFailure},
		{"explicit", &ExitError{Code: ExitCommandError, Message: "open", ErrCode: ErrCodeStoreOpen}, ErrCodeStoreOpen, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classifyError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestOutputFormatter_FailHidesStoreCause(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	err := f.Fail(domain.StoreFailure(errors.New("pq: relation users does not exist")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStoreFailure, resp.Error.Code)
	assert.Equal(t, "STORE_FAILURE", resp.Error.Kind)
	assert.Equal(t, domain.GenericStoreMessage, resp.Error.Message)
	assert.NotContains(t, buf.String(), "relation users")
}

func TestOutputFormatter_FailText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail(WrapExitError(ExitCommandError, "failed to load config", errors.New("no such file")))
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)
	assert.Equal(t, "Error [E001]: failed to load config: no such file\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitCommandError, GetExitCode(domain.StoreFailure(nil)))
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "phasetrack.db")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Opening phasetrack.db")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}
