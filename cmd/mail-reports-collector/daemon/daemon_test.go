package daemon_test

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubuntu/mail-reports-collector/cmd/mail-reports-collector/daemon"
	"github.com/ubuntu/mail-reports-collector/internal/collector"
	"github.com/ubuntu/mail-reports-collector/internal/constants"
	"github.com/ubuntu/mail-reports-collector/internal/fileutils"
	"github.com/ubuntu/mail-reports-collector/internal/testutils"
)

func TestConfigArg(t *testing.T) {
	filename := "conf.yaml"
	configPath := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(configPath, []byte("Verbosity: 1\ndaemon:\n  maxuploadbytes: 20MiB\n"), 0600),
		"Setup: couldn't write config file")

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("version", "--config", configPath)

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")
	require.Equal(t, 1, a.Config().Verbosity)
	require.Equal(t, fileutils.ByteSize(20<<20), a.Config().Daemon.MaxUploadBytes, "units should be accepted in configuration")
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("MAIL_REPORTS_COLLECTOR_DAEMON_READTIMEOUT", "1s")
	t.Setenv("MAIL_REPORTS_COLLECTOR_DAEMON_S3_BUCKET", "reports")

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("version")

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")
	require.Equal(t, time.Second, a.Config().Daemon.ReadTimeout)
	require.Equal(t, "reports", a.Config().Daemon.S3.Bucket, "nested keys should be read from the environment")
}

func TestListenPort(t *testing.T) {
	tests := map[string]struct {
		portEnv   string
		configEnv string

		wantPort int
		wantErr  bool
	}{
		"Default port":                       {wantPort: constants.DefaultListenPort},
		"PORT is used as a fallback":         {portEnv: "4242", wantPort: 4242},
		"Configuration takes precedence":     {portEnv: "4242", configEnv: "4343", wantPort: 4343},
		"Configuration without PORT is used": {configEnv: "4343", wantPort: 4343},

		"Error on invalid PORT": {portEnv: "http", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(constants.PortEnv, tc.portEnv)
			if tc.configEnv != "" {
				t.Setenv("MAIL_REPORTS_COLLECTOR_DAEMON_LISTENPORT", tc.configEnv)
			}

			a, err := daemon.New()
			require.NoError(t, err, "Setup: New should not return an error")
			a.SetArgs("version")

			err = a.Run()
			if tc.wantErr {
				require.Error(t, err, "Run should return an error")
				return
			}
			require.NoError(t, err, "Run should not return an error")
			assert.Equal(t, tc.wantPort, a.Config().Daemon.ListenPort, "unexpected listen port")
		})
	}
}

func TestFlagsOverrideConfiguration(t *testing.T) {
	t.Setenv("MAIL_REPORTS_COLLECTOR_DAEMON_WRITETIMEOUT", "3s")

	conf := &daemon.AppConfig{
		Daemon: collector.StaticConfig{
			ReadTimeout:    time.Second,
			WriteTimeout:   2 * time.Second,
			MaxUploadBytes: 1 << 10,
		},
	}
	a, wait := startDaemon(t, conf, "--max-upload-bytes", "2MiB", "--write-timeout", "4s")
	got := a.Config().Daemon
	a.Quit()
	wait()

	assert.Equal(t, time.Second, got.ReadTimeout, "configuration should be used when no flag is set")
	assert.Equal(t, fileutils.ByteSize(2<<20), got.MaxUploadBytes, "flag should override the configuration")
	assert.Equal(t, 4*time.Second, got.WriteTimeout, "flag should override the environment")
}

func TestServesReports(t *testing.T) {
	reportsDir := t.TempDir()
	conf := &daemon.AppConfig{
		Daemon: collector.StaticConfig{ReportsDir: reportsDir},
	}
	a, wait := startDaemon(t, conf)

	resp, err := http.Post("http://"+a.Addr()+"/v1/dmarc", "application/xml", strings.NewReader("<feedback/>"))
	require.NoError(t, err, "Request should not fail")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "report should be accepted")

	a.Quit()
	wait()

	files := testutils.GetDirContents(t, reportsDir)
	require.Len(t, files, 1, "report should be stored")
	for _, content := range files {
		assert.Equal(t, "<feedback/>", content, "report should be stored as received")
	}
}

func TestDaeConfigBadPathErrors(t *testing.T) {
	t.Parallel()

	conf := &daemon.AppConfig{
		Daemon: collector.StaticConfig{
			ConfigPath: "/does/not/exist.json",
		},
	}
	a := daemon.NewForTests(t, conf)

	chErr := make(chan error, 1)
	go func() {
		chErr <- a.Run()
	}()
	a.WaitReady()

	err := <-chErr
	require.Error(t, err, "Run should return with an error")
}

func TestInvalidUploadLimitErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value string
	}{
		"Zero":     {value: "0"},
		"Overflow": {value: "9000000000GiB"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a := daemon.NewForTests(t, nil, "--max-upload-bytes", tc.value)
			require.Error(t, a.Run(), "Run should refuse an upload limit of %s", tc.value)
		})
	}
}

func TestVersion(t *testing.T) {
	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	var out bytes.Buffer
	a.SetOut(&out)
	a.SetArgs("version")

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")
	assert.Equal(t, constants.CmdName+" "+constants.Version+" ("+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH+")\n",
		out.String(), "unexpected version output")
}

func TestNoUsageError(t *testing.T) {
	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("completion", "bash")

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")

	isUsageError := a.UsageError()
	require.False(t, isUsageError, "No usage error is reported as such")
}

func TestUsageError(t *testing.T) {
	t.Parallel()

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("doesnotexist")

	err = a.Run()
	require.Error(t, err, "Run should return an error")
	isUsageError := a.UsageError()
	require.True(t, isUsageError, "Usage error is reported as such")

	// Test when SilenceUsage is true
	a.SetSilenceUsage(true)
	assert.False(t, a.UsageError())

	// Test when SilenceUsage is false
	a.SetSilenceUsage(false)
	assert.True(t, a.UsageError())
}

func TestAppCanSigHupAfterExecute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping Hup test on Windows")
	}
	r, w, err := os.Pipe()
	require.NoError(t, err, "Setup: pipe shouldn't fail")

	a, wait := startDaemon(t, nil)
	a.Quit()
	wait()

	orig := os.Stdout
	os.Stdout = w

	a.Hup()

	os.Stdout = orig
	w.Close()

	var out bytes.Buffer
	_, err = io.Copy(&out, r)
	require.NoError(t, err, "Couldn't copy stdout to buffer")
	require.NotEmpty(t, out.String(), "Stacktrace is printed")
}

func TestBadConfigReturnsError(t *testing.T) {
	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	// Use version to still run preExec to load no config but without running server
	a.SetArgs("version", "--config", "/does/not/exist.yaml")

	err = a.Run()
	require.Error(t, err, "Run should return an error on config file")
}

func TestRootCmd(t *testing.T) {
	app, err := daemon.New()
	require.NoError(t, err)

	cmd := app.RootCmd()

	assert.NotNil(t, cmd, "Returned root cmd should not be nil")
	assert.Equal(t, constants.CmdName, cmd.Name())
}

func TestFlags(t *testing.T) {
	t.Parallel()

	tests := []testutils.FlagTestCase{
		{Name: "verbose", Short: "v", Default: "0", PersistentFlag: true},
		{Name: "json-logs", Default: "false", PersistentFlag: true},
		{Name: "config", Default: "", PersistentFlag: true},

		{Name: "daemon-config", Default: "", Filename: true},
		{Name: "reports-dir", Default: constants.GetDefaultReportsDir(), Dirname: true},
		{Name: "access-log", Default: "true"},
		{Name: "read-timeout", Default: "5s"},
		{Name: "write-timeout", Default: "10s"},
		{Name: "request-timeout", Default: "5s"},
		{Name: "max-header-bytes", Default: "8192"},
		{Name: "max-upload-bytes", Default: "10485760"},
		{Name: "listen-host", Default: ""},
		{Name: "listen-port", Default: "3000"},
		{Name: "metrics-host", Default: ""},
		{Name: "metrics-port", Default: "0"},
		{Name: "s3-endpoint", Default: ""},
		{Name: "s3-bucket", Default: ""},
		{Name: "s3-access-key", Default: ""},
		{Name: "s3-secret-key", Default: ""},
		{Name: "s3-region", Default: ""},
		{Name: "s3-use-ssl", Default: "false"},
	}

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	cmd := a.RootCmd()

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			testutils.FlagTestHelper(t, &cmd, tc)
		})
	}
}

// startDaemon prepares and starts the daemon in the background. The done function should be called
// to wait for the daemon to stop.
//
// The done function should be called in the main goroutine for the test.
func startDaemon(t *testing.T, conf *daemon.AppConfig, args ...string) (app *daemon.App, done func()) {
	t.Helper()

	a := daemon.NewForTests(t, conf, args...)

	chErr := make(chan error, 1)
	go func() {
		chErr <- a.Run()
	}()
	a.WaitReady()
	require.Eventually(t, func() bool {
		return a.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond, "Setup: daemon did not start listening")

	return a, func() {
		err := <-chErr
		require.NoError(t, err, "Run should return without an error")
	}
}
