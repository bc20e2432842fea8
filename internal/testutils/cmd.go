// Package testutils provides helper functions for testing
package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CmdTestCase describes a flag expected on a cobra command.
type CmdTestCase struct {
	Name           string
	Short          string
	Default        string
	Dirname        bool
	Filename       bool
	PersistentFlag bool
	BaseCmd        *cobra.Command
}

// FlagTestHelper asserts that the flag described by testCase is installed on its command.
func FlagTestHelper(t *testing.T, testCase CmdTestCase) {
	t.Helper()

	flags := testCase.BaseCmd.Flags()
	if testCase.PersistentFlag {
		flags = testCase.BaseCmd.PersistentFlags()
	}
	flag := flags.Lookup(testCase.Name)
	require.NotNil(t, flag, "Flag %q should be installed", testCase.Name)

	assert.Equal(t, testCase.Short, flag.Shorthand, "Unexpected shorthand")
	if testCase.Default != "" {
		assert.Equal(t, testCase.Default, flag.DefValue, "Unexpected default value")
	}

	if testCase.Dirname {
		assert.Equal(t, []string{}, flag.Annotations[cobra.BashCompSubdirsInDir], "Flag should complete directories")
	} else {
		assert.Nil(t, flag.Annotations[cobra.BashCompSubdirsInDir], "Flag should not complete directories")
	}

	if testCase.Filename {
		assert.Contains(t, flag.Annotations, cobra.BashCompFilenameExt, "Flag should complete file names")
	} else {
		assert.NotContains(t, flag.Annotations, cobra.BashCompFilenameExt, "Flag should not complete file names")
	}
}
