// Package daemon provides the mail reports collector daemon.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/mail-reports-collector/internal/cli"
	"github.com/ubuntu/mail-reports-collector/internal/collector"
	"github.com/ubuntu/mail-reports-collector/internal/constants"
	"github.com/ubuntu/mail-reports-collector/internal/fileutils"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *collector.Server

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool
	Daemon    collector.StaticConfig
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Mail aggregate reports collector",
		Long: "Mail aggregate reports collector accepting SMTP TLS reports (RFC 8460) and " +
			"DMARC aggregate reports (RFC 7489) over HTTP and storing them as received.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetupLogger(cmd.ErrOrStderr(), a.config.Verbosity, false) // Log configuration loading with the flag verbosity
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				fileutils.ByteSizeHookFunc(),
			))); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			if err := a.portFromEnv(); err != nil {
				return err
			}

			cli.SetupLogger(cmd.ErrOrStderr(), a.config.Verbosity, a.config.JSONLogs)
			slog.Info("got app config", "config", a.config.redacted())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	if err := bindDaemonFlags(a.cmd, a.viper); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

// daemonFlags maps the daemon flags to their configuration key.
var daemonFlags = map[string]string{
	"daemon-config":    "daemon.configpath",
	"reports-dir":      "daemon.reportsdir",
	"access-log":       "daemon.accesslog",
	"read-timeout":     "daemon.readtimeout",
	"write-timeout":    "daemon.writetimeout",
	"request-timeout":  "daemon.requesttimeout",
	"max-header-bytes": "daemon.maxheaderbytes",
	"max-upload-bytes": "daemon.maxuploadbytes",
	"listen-host":      "daemon.listenhost",
	"listen-port":      "daemon.listenport",
	"metrics-host":     "daemon.metricshost",
	"metrics-port":     "daemon.metricsport",
	"s3-endpoint":      "daemon.s3.endpoint",
	"s3-bucket":        "daemon.s3.bucket",
	"s3-access-key":    "daemon.s3.accesskey",
	"s3-secret-key":    "daemon.s3.secretkey",
	"s3-region":        "daemon.s3.region",
	"s3-use-ssl":       "daemon.s3.usessl",
}

func installRootCmd(app *App) {
	cmd := app.cmd

	defaultConf := collector.StaticConfig{
		ConfigPath: "",
		ReportsDir: constants.GetDefaultReportsDir(),
		AccessLog:  true,

		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxHeaderBytes: 1 << 13, // 8 KB
		MaxUploadBytes: 10 << 20, // 10 MiB

		ListenPort: constants.DefaultListenPort,
	}

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "write logs as JSON")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.Daemon.ConfigPath, "daemon-config", defaultConf.ConfigPath, "path to the dynamic configuration file")
	cmd.Flags().StringVar(&app.config.Daemon.ReportsDir, "reports-dir", defaultConf.ReportsDir, "directory to store reports in, reports are discarded if empty")
	cmd.Flags().BoolVar(&app.config.Daemon.AccessLog, "access-log", defaultConf.AccessLog, "write an access log to stdout")

	cmd.Flags().DurationVar(&app.config.Daemon.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.WriteTimeout, "write-timeout", defaultConf.WriteTimeout, "write timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.RequestTimeout, "request-timeout", defaultConf.RequestTimeout, "request timeout for HTTP server, 0 to disable")
	cmd.Flags().IntVar(&app.config.Daemon.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")
	app.config.Daemon.MaxUploadBytes = defaultConf.MaxUploadBytes
	cmd.Flags().Var(&app.config.Daemon.MaxUploadBytes, "max-upload-bytes", "maximum decoded size of a report, units are accepted (e.g. 20MiB)")

	cmd.Flags().StringVar(&app.config.Daemon.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&app.config.Daemon.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on")

	cmd.Flags().StringVar(&app.config.Daemon.MetricsHost, "metrics-host", defaultConf.MetricsHost, "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.Daemon.MetricsPort, "metrics-port", defaultConf.MetricsPort, "port for the metrics endpoint, 0 to disable")

	cmd.Flags().StringVar(&app.config.Daemon.S3.Endpoint, "s3-endpoint", "", "S3 compatible endpoint to store reports in instead of the reports directory")
	cmd.Flags().StringVar(&app.config.Daemon.S3.Bucket, "s3-bucket", "", "bucket to store reports in")
	cmd.Flags().StringVar(&app.config.Daemon.S3.AccessKey, "s3-access-key", "", "access key for the object storage")
	cmd.Flags().StringVar(&app.config.Daemon.S3.SecretKey, "s3-secret-key", "", "secret key for the object storage")
	cmd.Flags().StringVar(&app.config.Daemon.S3.Region, "s3-region", "", "region of the bucket")
	cmd.Flags().BoolVar(&app.config.Daemon.S3.UseSSL, "s3-use-ssl", false, "use TLS to reach the object storage")

	err := cmd.MarkFlagFilename("daemon-config")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark daemon-config flag as filename: %v", err))
	}

	err = cmd.MarkFlagDirname("reports-dir")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark reports-dir flag as directory: %v", err))
	}
}

// bindDaemonFlags binds the daemon flags to their configuration key, so that flags override the configuration.
func bindDaemonFlags(cmd *cobra.Command, vip *viper.Viper) error {
	for name, key := range daemonFlags {
		if err := vip.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("could not bind flag %s: %w", name, err)
		}
	}
	return nil
}

// portFromEnv uses the PORT environment variable when no flag, environment or configuration key sets the listen port.
func (a *App) portFromEnv() error {
	if a.viper.IsSet("daemon.listenport") {
		return nil
	}
	v := os.Getenv(constants.PortEnv)
	if v == "" {
		return nil
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable %q: %v", constants.PortEnv, v, err)
	}
	a.config.Daemon.ListenPort = p
	return nil
}

// redacted returns a copy of the configuration safe to be logged.
func (c appConfig) redacted() appConfig {
	if c.Daemon.S3.SecretKey != "" {
		c.Daemon.S3.SecretKey = "REDACTED"
	}
	return c
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	fmt.Printf("%s", buf[:n])
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	if a.config.Daemon.ConfigPath != "" {
		a.config.Daemon.ConfigPath, err = filepath.Abs(a.config.Daemon.ConfigPath)
		if err != nil {
			close(a.ready)
			return fmt.Errorf("failed to get absolute path for config file: %v", err)
		}
	}

	a.daemon, err = collector.New(context.Background(), a.config.Daemon)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}
