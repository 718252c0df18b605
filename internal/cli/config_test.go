package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubuntu/mail-reports-collector/internal/cli"
)

func TestInitViperConfig(t *testing.T) {
	tests := map[string]struct {
		config    string
		noConfig  bool
		env       map[string]string
		extension string

		wantPort   int
		wantDir    string
		wantErr    bool
		wantNoFile bool
	}{
		"Reads the configuration file": {
			config:   "daemon:\n  listenport: 4000\n  reportsdir: /srv/reports\n",
			wantPort: 4000, wantDir: "/srv/reports",
		},
		"Environment overrides the configuration file": {
			config:   "daemon:\n  listenport: 4000\n  reportsdir: /srv/reports\n",
			env:      map[string]string{"MAIL_REPORTS_COLLECTOR_DAEMON_LISTENPORT": "5000"},
			wantPort: 5000, wantDir: "/srv/reports",
		},
		"Environment values may contain equal signs": {
			config:   "daemon:\n  listenport: 4000\n",
			env:      map[string]string{"MAIL_REPORTS_COLLECTOR_DAEMON_REPORTSDIR": "/srv/a=b"},
			wantPort: 4000, wantDir: "/srv/a=b",
		},
		"Unrelated environment is ignored": {
			config:   "daemon:\n  listenport: 4000\n",
			env:      map[string]string{"OTHER_DAEMON_LISTENPORT": "5000"},
			wantPort: 4000,
		},
		"Missing configuration file uses the environment": {
			noConfig:   true,
			env:        map[string]string{"MAIL_REPORTS_COLLECTOR_DAEMON_LISTENPORT": "5000"},
			wantPort:   5000,
			wantNoFile: true,
		},

		"Error on invalid configuration file": {config: "daemon: [", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			cmd := &cobra.Command{Use: "mail-reports-collector"}
			cli.InstallConfigFlag(cmd)

			if !tc.noConfig {
				p := filepath.Join(dir, "mail-reports-collector.yaml")
				require.NoError(t, os.WriteFile(p, []byte(tc.config), 0600), "Setup: could not write config file")
				require.NoError(t, cmd.PersistentFlags().Set("config", p), "Setup: could not set config flag")
			} else {
				t.Chdir(dir)
			}

			vip := viper.New()
			err := cli.InitViperConfig("mail-reports-collector", cmd, vip)
			if tc.wantErr {
				require.Error(t, err, "InitViperConfig should fail")
				return
			}
			require.NoError(t, err, "InitViperConfig should not fail")

			var conf struct {
				Daemon struct {
					ListenPort int
					ReportsDir string
				}
			}
			require.NoError(t, vip.Unmarshal(&conf), "Configuration should unmarshal")

			assert.Equal(t, tc.wantPort, conf.Daemon.ListenPort, "unexpected listen port")
			assert.Equal(t, tc.wantDir, conf.Daemon.ReportsDir, "unexpected reports dir")
			if tc.wantNoFile {
				assert.Empty(t, vip.ConfigFileUsed(), "No configuration file should be used")
			}
		})
	}
}

func TestEnvPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MAIL_REPORTS_COLLECTOR_", cli.EnvPrefix("mail-reports-collector"), "unexpected prefix")
}

func TestInstallConfigFlag(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	p := cli.InstallConfigFlag(cmd)

	require.NoError(t, cmd.PersistentFlags().Set("config", "/etc/collector.yaml"), "Setting the flag should not fail")
	assert.Equal(t, "/etc/collector.yaml", *p, "flag value should be returned")
}
