package collector

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/mail-reports-collector/internal/config"
	"github.com/ubuntu/mail-reports-collector/internal/storage"
)

type DConfigManager = dConfigManager

// WithAccessLogOutput sets where the access log is written.
func WithAccessLogOutput(w io.Writer) Options {
	return func(o *options) {
		o.accessLogOut = w
	}
}

// WithConfigManager replaces the dynamic configuration manager.
func WithConfigManager(cm DConfigManager) Options {
	return func(o *options) {
		o.cm = cm
	}
}

// WithStorageOptions sets the options of the report storage.
func WithStorageOptions(args ...storage.Options) Options {
	return func(o *options) {
		o.storageOpts = args
	}
}

// HTTPServer returns the HTTP server for testing purposes.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Sink returns the storage selected for reports.
func (s *Server) Sink() storage.Sink {
	return s.sink
}

// GenerateTestDaemonConfig generates a temporary dynamic config file for testing.
func GenerateTestDaemonConfig(t *testing.T, daeConf *config.Conf) string {
	t.Helper()

	d, err := json.Marshal(daeConf)
	require.NoError(t, err, "Setup: failed to marshal dynamic server config for tests")
	daeConfPath := filepath.Join(t.TempDir(), "daemon-testconfig.json")
	require.NoError(t, os.WriteFile(daeConfPath, d, 0600), "Setup: failed to write dynamic config for tests")

	return daeConfPath
}
