package commands

import (
	"testing"

	"github.com/laav10/astro-ingester/internal/constants"
	"github.com/laav10/astro-ingester/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageError(t *testing.T) {
	app, err := New()
	require.NoError(t, err)

	// Test when SilenceUsage is true
	app.cmd.SilenceUsage = true
	assert.False(t, app.UsageError())

	// Test when SilenceUsage is false
	app.cmd.SilenceUsage = false
	assert.True(t, app.UsageError())
}

func TestRootCmd(t *testing.T) {
	app, err := New()
	require.NoError(t, err)

	cmd := app.RootCmd()

	assert.NotNil(t, cmd, "Returned root cmd should not be nil")
	assert.Equal(t, constants.CmdName, cmd.Name())
}

func TestFlags(t *testing.T) {
	t.Parallel()

	app, err := New()
	require.NoError(t, err)

	serve, _, err := app.cmd.Find([]string{"serve"})
	require.NoError(t, err, "serve subcommand should exist")

	tests := map[string]testutils.CmdTestCase{
		"verbose":          {Name: "verbose", Short: "v", PersistentFlag: true, BaseCmd: app.cmd},
		"json-logs":        {Name: "json-logs", PersistentFlag: true, BaseCmd: app.cmd},
		"log-file":         {Name: "log-file", Filename: true, PersistentFlag: true, BaseCmd: app.cmd},
		"config":           {Name: "config", PersistentFlag: true, BaseCmd: app.cmd},
		"store-endpoint":   {Name: "store-endpoint", PersistentFlag: true, BaseCmd: app.cmd},
		"store-bucket":     {Name: "store-bucket", Default: "astronomical-data", PersistentFlag: true, BaseCmd: app.cmd},
		"archive-url":      {Name: "archive-url", PersistentFlag: true, BaseCmd: app.cmd},
		"archive-timeout":  {Name: "archive-timeout", PersistentFlag: true, BaseCmd: app.cmd},
		"metrics-push-url": {Name: "metrics-push-url", PersistentFlag: true, BaseCmd: app.cmd},
		"exit-code":        {Name: "exit-code", BaseCmd: app.cmd},
		"listen-port":      {Name: "listen-port", Default: "3001", BaseCmd: serve},
		"upload-dir":       {Name: "upload-dir", Dirname: true, BaseCmd: serve},
		"max-upload-bytes": {Name: "max-upload-bytes", BaseCmd: serve},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutils.FlagTestHelper(t, tc)
		})
	}
}
