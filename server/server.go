package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/oklog/run"
	"github.com/owenthereal/webterm/bridge"
	webtermctx "github.com/owenthereal/webterm/internal/context"
	"github.com/owenthereal/webterm/internal/logging"
	"github.com/pires/go-proxyproto"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Start serves opt until ctx is done or the process receives SIGINT or SIGTERM.
// It logs to the logger carried by ctx.
func Start(ctx context.Context, opt Opt) error {
	if err := opt.Validate(); err != nil {
		return err
	}

	logger := webtermctx.Logger(ctx)
	if logger == nil {
		logger = logging.Discard()
	}

	ln, err := net.Listen("tcp", opt.Addr())
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", opt.Addr(), err)
	}
	ln = wrapListener(opt, ln)

	var metricln net.Listener
	if opt.MetricAddr != "" {
		metricln, err = net.Listen("tcp", opt.MetricAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("error listening on %s: %w", opt.MetricAddr, err)
		}
	}

	logSessionState(ctx, opt, logger.Logger)

	var g run.Group
	{
		s := &Server{
			Opt:             opt,
			Logger:          logger.With("component", "server").Logger,
			MetricsProvider: newMetricsProvider(opt.MetricAddr),
		}
		g.Add(func() error {
			logger.Info("serving terminal", "addr", ln.Addr().String(), "session", opt.Session, "ws_path", opt.WSPath)
			return s.ServeWithContext(ctx, ln)
		}, func(err error) {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = s.Shutdown(sctx)
		})
	}
	if metricln != nil {
		m := newMetricServer()
		g.Add(func() error {
			logger.Info("serving metrics", "addr", metricln.Addr().String())
			return m.Serve(metricln)
		}, func(err error) {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = m.Shutdown(sctx)
		})
	}
	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	}

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info("shutting down", "signal", sigErr.Signal.String())
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// wrapListener makes connections report the client address carried in a
// PROXY protocol header when opt.ProxyProtocol is set. Connections without a
// header are accepted as is.
func wrapListener(opt Opt, ln net.Listener) net.Listener {
	if !opt.ProxyProtocol {
		return ln
	}

	return &proxyproto.Listener{
		Listener:          ln,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func logSessionState(ctx context.Context, opt Opt, logger *slog.Logger) {
	exists, err := opt.launcher().Exists(ctx)
	switch {
	case err != nil:
		logger.Warn("error checking tmux session", "session", opt.Session, "error", err)
	case exists:
		logger.Info("attaching to existing tmux session", "session", opt.Session)
	default:
		logger.Info("tmux session will be created on first connection", "session", opt.Session)
	}
}

// Server serves the terminal upgrade route and the protected static files.
type Server struct {
	Opt             Opt
	Logger          *slog.Logger
	MetricsProvider provider.Provider

	mux    sync.Mutex
	srv    *http.Server
	cancel context.CancelFunc
	closed bool
}

func (s *Server) ServeWithContext(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		// bridged connections end when ctx is done
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		cancel()
		return http.ErrServerClosed
	}
	s.srv, s.cancel = srv, cancel
	s.mux.Unlock()

	var g run.Group
	{
		g.Add(func() error {
			<-ctx.Done()
			return ctx.Err()
		}, func(err error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			return srv.Serve(ln)
		}, func(err error) {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = srv.Shutdown(sctx)
		})
	}

	return g.Run()
}

// Shutdown stops accepting connections and ends every bridged connection.
// tmux sessions keep running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mux.Lock()
	s.closed = true
	srv, cancel := s.srv, s.cancel
	s.mux.Unlock()

	if srv == nil {
		return nil
	}

	cancel()
	return srv.Shutdown(ctx)
}

// Handler routes opt.WSPath to the terminal bridge and everything else to the
// static directory behind HTTP Basic authentication.
func (s *Server) Handler() http.Handler {
	logger := s.logger()

	b := &bridge.Handler{
		Credentials:     s.Opt.credentials(),
		Spawner:         bridge.LauncherSpawner(s.Opt.launcher()),
		QueueSize:       s.Opt.QueueSize,
		ChunkSize:       s.Opt.ChunkSize,
		Logger:          logger.With("component", "bridge"),
		MetricsProvider: s.MetricsProvider,
	}

	return newRouter(s.Opt, b, logger)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
