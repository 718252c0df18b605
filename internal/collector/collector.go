// Package collector provides the HTTP server receiving TLS and DMARC aggregate reports.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ubuntu/mail-reports-collector/internal/collector/handlers"
	"github.com/ubuntu/mail-reports-collector/internal/collector/metrics"
	"github.com/ubuntu/mail-reports-collector/internal/collector/middleware"
	"github.com/ubuntu/mail-reports-collector/internal/config"
	"github.com/ubuntu/mail-reports-collector/internal/fileutils"
	"github.com/ubuntu/mail-reports-collector/internal/ingest"
	"github.com/ubuntu/mail-reports-collector/internal/report"
	"github.com/ubuntu/mail-reports-collector/internal/storage"
)

// Server is a struct that holds the HTTP servers and their configuration.
type Server struct {
	httpServer    *http.Server
	metricsServer *metrics.Server
	cm            dConfigManager
	sink          storage.Sink

	mu   sync.RWMutex
	addr net.Addr

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context is cancelled to start a graceful shutdown.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	// ConfigPath is the optional dynamic configuration file, watched for changes.
	ConfigPath string
	// ReportsDir is where reports are stored. Reports are discarded when it is empty and no object store is set.
	ReportsDir string
	// AccessLog enables the access log, unless the dynamic configuration says otherwise.
	AccessLog bool

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	// MaxUploadBytes bounds the request body and the inflated report. It must be positive.
	MaxUploadBytes fileutils.ByteSize

	ListenHost string
	ListenPort int

	// MetricsPort 0 disables the metrics server.
	MetricsHost string
	MetricsPort int

	// S3 selects object storage instead of ReportsDir when its endpoint is set.
	S3 storage.ObjectConfig
}

type dConfigManager interface {
	config.Provider
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
}

type options struct {
	accessLogOut io.Writer
	cm           dConfigManager
	storageOpts  []storage.Options
}

// Options represents an optional function to override Server default values.
type Options func(*options)

// New creates a new Server for the given static configuration.
// Storage is prepared eagerly, so that a misconfiguration is reported before serving anything.
func New(ctx context.Context, sc StaticConfig, args ...Options) (*Server, error) {
	if sc.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("maximum upload size must be positive, got %d", sc.MaxUploadBytes)
	}

	opts := options{
		accessLogOut: os.Stdout,
	}
	for _, opt := range args {
		opt(&opts)
	}

	var provider config.Provider = config.Static{AccessLogEnabled: sc.AccessLog}
	cm := opts.cm
	if cm == nil && sc.ConfigPath != "" {
		cm = config.New(sc.ConfigPath, config.Static{AccessLogEnabled: sc.AccessLog})
	}
	if cm != nil {
		if err := cm.Load(); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		provider = cm
	}

	sink, err := newSink(ctx, sc, opts.storageOpts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:   cm,
		sink: sink,

		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	routes := metrics.NewRoutes(reg)
	reports := metrics.NewReports(reg)

	maxUpload := int64(sc.MaxUploadBytes)
	svc := ingest.New(sink, maxUpload)
	dmarc := routes.Instrument("dmarc", handlers.NewIngest(report.DMARC, svc, maxUpload, reports))

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", routes.Instrument("index", http.HandlerFunc(handlers.IndexHandler)))
	mux.Handle("POST /v1/tls-rpt", routes.Instrument("tls-rpt", handlers.NewIngest(report.TLSRPT, svc, maxUpload, reports)))
	mux.Handle("POST /v1/dmarc", dmarc)
	mux.Handle("PUT /v1/dmarc", dmarc)
	mux.Handle("GET /version", routes.Instrument("version", http.HandlerFunc(handlers.VersionHandler)))

	var handler http.Handler = mux
	if sc.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, sc.RequestTimeout, "")
	}
	handler = middleware.Recover(slog.Default(), handler)
	handler = middleware.NewAccessLogger(provider, opts.accessLogOut).Wrap(handler)
	handler = middleware.RequestID(handler)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(sc.ListenHost, strconv.Itoa(sc.ListenPort)),
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		Handler:           handler,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}

	if sc.MetricsPort > 0 {
		s.metricsServer = metrics.NewServer(metrics.Config{
			Host:         sc.MetricsHost,
			Port:         sc.MetricsPort,
			ReadTimeout:  sc.ReadTimeout,
			WriteTimeout: sc.WriteTimeout,
		}, reg)
	}

	return &s, nil
}

// newSink selects where reports are stored: object storage, then the reports directory, and discards them otherwise.
func newSink(ctx context.Context, sc StaticConfig, args ...storage.Options) (storage.Sink, error) {
	namer := storage.NewNamer(args...)

	switch {
	case sc.S3.Endpoint != "":
		s, err := storage.NewObjectSink(ctx, sc.S3, namer, args...)
		if err != nil {
			return nil, err
		}
		slog.Info("Storing reports in object storage", "endpoint", sc.S3.Endpoint, "bucket", sc.S3.Bucket)
		return s, nil
	case sc.ReportsDir != "":
		s, err := storage.NewFileSink(sc.ReportsDir, namer, args...)
		if err != nil {
			return nil, err
		}
		slog.Info("Storing reports in directory", "dir", s.Dir())
		return s, nil
	default:
		slog.Warn("No reports directory nor object storage configured: reports will be accepted and discarded")
		return storage.NewDrySink(args...), nil
	}
}

// Run starts the HTTP servers and listens for incoming requests until Quit is called or a server fails.
func (s *Server) Run() error {
	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	var watchErr <-chan error
	if s.cm != nil {
		var err error
		if _, watchErr, err = s.cm.Watch(s.gracefulCtx); err != nil {
			return fmt.Errorf("failed to start watching configuration: %v", err)
		}
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()
	slog.Info("Starting server", "addr", listener.Addr().String())

	serverErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if s.metricsServer != nil {
		ml, err := s.metricsServer.Listen()
		if err != nil {
			errC := s.httpServer.Close()
			s.cancel()
			return errors.Join(fmt.Errorf("failed to listen for metrics: %v", err), errC)
		}
		slog.Info("Starting metrics server", "addr", s.metricsServer.Addr())
		go func() {
			if err := s.metricsServer.Serve(ml); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	select {
	case <-s.gracefulCtx.Done():
		slog.Info("Graceful shutdown initiated")
		// use parent ctx so if you call s.cancel() elsewhere it unblocks Shutdown immediately
		err := s.httpServer.Shutdown(s.ctx)
		if s.metricsServer != nil {
			err = errors.Join(err, s.metricsServer.Shutdown(s.ctx))
		}
		// now kill everything else (watchers, handlers, etc.)
		s.cancel()
		if err != nil {
			slog.Error("Graceful shutdown failed", "err", err)
			return err
		}
		slog.Info("Server shut down gracefully")
		return nil

	case err := <-serverErr:
		slog.Error("Server encountered error", "err", err)
		s.closeAll()
		s.cancel()
		return err

	case err := <-watchErr:
		if err != nil {
			slog.Error("Config watcher encountered unrecoverable error", "err", err)
		}
		errC := s.closeAll()
		s.cancel()

		return errors.Join(err, errC)
	}
}

func (s *Server) closeAll() error {
	err := s.httpServer.Close()
	if s.metricsServer != nil {
		err = errors.Join(err, s.metricsServer.Close())
	}
	return err
}

// Quit shuts down the HTTP servers. In-flight requests are waited for, unless force is set.
func (s *Server) Quit(force bool) {
	if force {
		_ = s.closeAll()
		s.cancel()
	} else {
		// Run cancels the parent context once the servers are shut down.
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}

// Addr returns the address the server listens on, or an empty string if it isn't listening yet.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// MetricsAddr returns the address of the metrics server, or an empty string if it isn't listening.
func (s *Server) MetricsAddr() string {
	if s.metricsServer == nil {
		return ""
	}
	return s.metricsServer.Addr()
}
