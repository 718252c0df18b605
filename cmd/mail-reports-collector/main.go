// Package main runs the collector accepting TLSRPT and DMARC aggregate reports over HTTP.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ubuntu/mail-reports-collector/cmd/mail-reports-collector/daemon"
)

// Exit codes of the collector.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsageError = 2
)

func main() {
	a, err := daemon.New()
	if err != nil {
		slog.Error("Could not create the collector", "err", err)
		os.Exit(exitFailure)
	}

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
	Hup() bool
	Quit()
}

// run serves until a returns, and turns its error into an exit code.
func run(a app) int {
	stop := installSignalHandler(a)
	defer stop()

	err := a.Run()
	switch {
	case err == nil:
		return exitOK
	case a.UsageError():
		slog.Error("Invalid command line", "err", err)
		return exitUsageError
	default:
		slog.Error("Collector stopped", "err", err)
		return exitFailure
	}
}

// installSignalHandler stops a gracefully on SIGINT and SIGTERM, letting in-flight reports be stored.
// SIGHUP is handed to a, which decides whether to stop.
// The returned function stops listening to signals and waits for the handler to exit.
func installSignalHandler(a app) (stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for sig := range c {
			if sig == syscall.SIGHUP && !a.Hup() {
				continue
			}
			slog.Info("Stopping the collector", "signal", sig.String())
			a.Quit()
			return
		}
	}()

	return func() {
		signal.Stop(c)
		close(c)
		<-done
	}
}
