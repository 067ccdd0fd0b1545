package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/gorilla/websocket"
	"github.com/oklog/run"
	"github.com/owenthereal/webterm/auth"
	webtermctx "github.com/owenthereal/webterm/internal/context"
	"github.com/owenthereal/webterm/session"
	"github.com/owenthereal/webterm/terminal"
	"github.com/rs/xid"
)

const closeGracePeriod = time.Second

// Process is a spawned attach client. Release drops it without signalling.
type Process interface {
	Release()
}

// Spawner starts the attach client on the slave side of a pty.
type Spawner interface {
	Spawn(ctx context.Context, tty *os.File) (Process, error)
}

// SpawnerFunc adapts a function to a Spawner.
type SpawnerFunc func(ctx context.Context, tty *os.File) (Process, error)

func (f SpawnerFunc) Spawn(ctx context.Context, tty *os.File) (Process, error) {
	return f(ctx, tty)
}

// LauncherSpawner spawns the tmux attach-or-create command of l.
func LauncherSpawner(l session.Launcher) Spawner {
	return SpawnerFunc(func(ctx context.Context, tty *os.File) (Process, error) {
		p, err := l.Start(ctx, tty)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// PTYOpener allocates a pty of the given size.
type PTYOpener func(rows, cols uint16) (*terminal.PTY, error)

// Handler upgrades authenticated requests to websockets and bridges each one
// to its own pty running the tmux attach client.
type Handler struct {
	Credentials     auth.Credentials
	Spawner         Spawner
	OpenPTY         PTYOpener
	QueueSize       int
	ChunkSize       int
	Logger          *slog.Logger
	MetricsProvider provider.Provider

	once     sync.Once
	inst     *instruments
	upgrader websocket.Upgrader
}

func (h *Handler) init() {
	h.once.Do(func() {
		h.inst = newInstruments(h.MetricsProvider)
		h.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
		if h.OpenPTY == nil {
			h.OpenPTY = terminal.Open
		}
		if h.Spawner == nil {
			h.Spawner = LauncherSpawner(session.Launcher{})
		}
		if h.Logger == nil {
			h.Logger = slog.New(slog.DiscardHandler)
		}
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init()

	ctx := webtermctx.WithConnID(r.Context(), xid.New().String())
	c := &conn{
		state:  Connecting,
		logger: webtermctx.ConnLogger(ctx, h.Logger).With("remote_addr", r.RemoteAddr),
	}

	c.transition(Authenticating)
	if err := h.Credentials.CheckQuery(r.URL.Query()); err != nil {
		h.inst.authRejections.Add(1)
		c.logger.Info("upgrade rejected", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		c.transition(Closed)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		c.logger.Info("upgrade failed", "error", err)
		c.transition(Closed)
		return
	}
	defer ws.Close()

	defer h.inst.conn.Track()()

	h.serve(ctx, c, ws)
}

func (h *Handler) serve(ctx context.Context, c *conn, ws *websocket.Conn) {
	c.transition(Launching)

	pty, err := h.OpenPTY(terminal.DefaultRows, terminal.DefaultCols)
	if err != nil {
		h.inst.launchErrors.Add(1)
		c.fail(ws, fmt.Sprintf("Error: %v", err), err)
		return
	}

	proc, err := h.Spawner.Spawn(ctx, pty.Tty())
	if err != nil {
		h.inst.launchErrors.Add(1)
		_ = pty.Close()
		c.fail(ws, fmt.Sprintf("Error spawning tmux: %v", err), err)
		return
	}

	// the child holds its own copy of the slave
	if err := pty.CloseTty(); err != nil {
		c.logger.Debug("closing tty", "error", err)
	}

	c.transition(Relaying)
	err = h.relay(ctx, c, ws, pty)
	c.transition(Closing)
	logRelayEnd(c.logger, err)

	proc.Release()
	if err := pty.Close(); err != nil {
		c.logger.Debug("closing pty", "error", err)
	}
	c.transition(Closed)
}

// relay runs both data paths until the first of them ends, then stops the
// pty reader and waits for the forwarder before returning.
func (h *Handler) relay(ctx context.Context, c *conn, ws *websocket.Conn, pty *terminal.PTY) error {
	rl := &Relay{
		Conn:      ws,
		Reader:    pty.Reader(),
		Writer:    pty.Writer(),
		Resizer:   pty,
		Queue:     NewQueue(h.QueueSize),
		ChunkSize: h.ChunkSize,
		Logger:    c.logger,
		inst:      h.inst,
	}

	readerCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()

	go func() {
		err := rl.PumpPTY(readerCtx)
		c.logger.Debug("pty reader stopped", "error", err)
	}()

	var g run.Group
	{
		fctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return rl.Forward(fctx)
		}, func(err error) {
			stopReader()
			rl.Queue.CloseConsumer()
			cancel()
		})
	}
	{
		g.Add(rl.Inbound, func(err error) {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
			_ = ws.Close()
		})
	}
	{
		done := make(chan struct{})
		g.Add(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-done:
				return nil
			}
		}, func(err error) {
			close(done)
		})
	}

	return g.Run()
}

func logRelayEnd(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, errTerminalClosed):
		logger.Info("terminal closed")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Info("client disconnected")
	case errors.Is(err, context.Canceled):
		logger.Info("connection canceled")
	default:
		logger.Info("connection ended", "error", err)
	}
}

type conn struct {
	state  State
	logger *slog.Logger
}

func (c *conn) transition(to State) {
	c.logger.Debug("state transition", "from", c.state.String(), "to", to.String())
	c.state = to
}

// fail reports a launch error to the client on a best-effort basis and closes.
func (c *conn) fail(ws *websocket.Conn, msg string, err error) {
	c.logger.Error("launch failed", "error", err)
	c.transition(Closing)

	_ = ws.WriteMessage(websocket.TextMessage, []byte(msg))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
	_ = ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeGracePeriod))

	c.transition(Closed)
}
