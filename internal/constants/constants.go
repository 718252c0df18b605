// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default data paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the collector command.
	CmdName = "mail-reports-collector"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultListenPort is the port used when neither flags, configuration nor PORT set one.
	DefaultListenPort = 3000

	// PortEnv is the environment variable historically used to select the listen port.
	PortEnv = "PORT"
)

// Service constants.
const (
	// DefaultServiceFolder is the name of the default root folder for the service.
	DefaultServiceFolder = "mail-reports-collector"

	// DefaultReportsFolder is the name of the default reports folder.
	DefaultReportsFolder = "reports"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultReportsDir is the default directory reports are stored in.
func GetDefaultReportsDir(opts ...option) string {
	o := options{baseDir: os.UserCacheDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultServiceFolder, DefaultReportsFolder)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
