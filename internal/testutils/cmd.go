package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FlagTestCase describes the expected definition of a cobra command flag.
type FlagTestCase struct {
	Name           string
	Short          string
	Default        string
	Filename       bool
	Dirname        bool
	PersistentFlag bool
}

// FlagTestHelper checks that a flag of cmd is defined as described by tc.
func FlagTestHelper(t *testing.T, cmd *cobra.Command, tc FlagTestCase) {
	t.Helper()

	var flag *pflag.Flag
	if tc.PersistentFlag {
		flag = cmd.PersistentFlags().Lookup(tc.Name)
	} else {
		flag = cmd.Flags().Lookup(tc.Name)
	}
	require.NotNil(t, flag, "flag %q should be defined", tc.Name)

	assert.Equal(t, tc.Short, flag.Shorthand, "unexpected shorthand for %q", tc.Name)
	assert.Equal(t, tc.Default, flag.DefValue, "unexpected default for %q", tc.Name)

	if tc.Filename {
		assert.Contains(t, flag.Annotations, cobra.BashCompFilenameExt, "%q should complete file names", tc.Name)
	} else {
		assert.NotContains(t, flag.Annotations, cobra.BashCompFilenameExt, "%q should not complete file names", tc.Name)
	}

	if tc.Dirname {
		assert.Equal(t, []string{}, flag.Annotations[cobra.BashCompSubdirsInDir], "%q should complete directories", tc.Name)
	} else {
		assert.Nil(t, flag.Annotations[cobra.BashCompSubdirsInDir], "%q should not complete directories", tc.Name)
	}
}
