package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "phasetrack", cmd.Use)
	assert.Contains(t, cmd.Long, "four phases")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"user", "create"},
		{"user", "login"},
		{"role", "grant"},
		{"permission", "roles"},
		{"member", "can"},
		{"project", "create"},
		{"phase", "init"},
		{"item", "iteration"},
		{"item", "microincrement"},
		{"item", "member", "add"},
		{"doc", "version", "add"},
		{"artefact", "register"},
		{"artifact", "history"},
		{"report", "tree"},
		{"report", "completeness"},
		{"plan", "apply"},
		{"plan", "validate"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestDocumentAlias(t *testing.T) {
	cmd := NewRootCommand()
	subCmd, _, err := cmd.Find([]string{"document", "list"})
	require.NoError(t, err)
	assert.Equal(t, "list", subCmd.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"db", "driver", "metrics-file"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestItemCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	iterCmd, _, err := cmd.Find([]string{"item", "iteration"})
	require.NoError(t, err)

	for _, name := range []string{"name", "number", "description", "start", "end", "by"} {
		assert.NotNil(t, iterCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "0", iterCmd.Flags().Lookup("number").DefValue)
}

func TestVersionGetFlags(t *testing.T) {
	cmd := NewRootCommand()
	getCmd, _, err := cmd.Find([]string{"doc", "version", "get"})
	require.NoError(t, err)

	outputFlag := getCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "project", "list"})

	out := &bytes.Buffer{}
	cmd.SetOut(out)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ErrCodeInput, exitErr.ErrCode)
	assert.Equal(t, "Error [E004]: invalid format \"invalid\": must be one of [text json]\n", out.String())
}
