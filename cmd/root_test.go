package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"run", "batch", "serve", "runs", "export", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "prospector-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"linkedin", "directory", "website", "query", "max", "priority", "out", "formats"} {
		flag := runCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "run command should have --%s flag", name)
	}
	assert.Equal(t, "medium", runCmd.Flags().Lookup("priority").DefValue)
}

func TestBatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"csv", "limit", "concurrency", "dry-run", "output"} {
		flag := batchCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "batch command should have --%s flag", name)
	}
	assert.Equal(t, "0", batchCmd.Flags().Lookup("limit").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag, "serve command should have --addr flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	cmds := runsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "show", "stats"}
	for _, name := range expected {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	for _, name := range []string{"dir", "formats", "notion", "webhook"} {
		flag := exportCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "export command should have --%s flag", name)
	}
}
