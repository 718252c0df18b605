package testutils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// reportName matches the names of stored reports.
var reportName = regexp.MustCompile(`^\d+-\d+-(tls-rpt-report\.json|dmarc-report\.xml)$`)

// GetDirContents returns the content of the regular files in dir, keyed by name.
// Temporary files left behind by the storage are reported too.
func GetDirContents(t *testing.T, dir string) map[string]string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "Setup: could not read directory %s", dir)

	files := make(map[string]string)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		d, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err, "Setup: could not read file %s", e.Name())
		files[e.Name()] = string(d)
	}
	return files
}

// RequireReportNames fails the test if a file of dir is not named like a stored report.
func RequireReportNames(t *testing.T, dir string) {
	t.Helper()

	for name := range GetDirContents(t, dir) {
		require.Regexp(t, reportName, name, "unexpected file in reports directory")
	}
}
