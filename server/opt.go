package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/owenthereal/webterm/auth"
	"github.com/owenthereal/webterm/bridge"
	"github.com/owenthereal/webterm/session"
)

const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 3000
	DefaultStaticDir = "static"
	DefaultWSPath    = "/ws"
)

var (
	ErrMissingUsername = errors.New("TERM_USERNAME is required")
	ErrMissingPassword = errors.New("TERM_PASSWORD is required")
)

// Opt is the server configuration. Keys match the command line flags; the
// environment uses the same keys upper-cased with a TERM_ prefix.
type Opt struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Shell      string `mapstructure:"shell"`
	Session    string `mapstructure:"session"`
	Tmux       string `mapstructure:"tmux"`
	StaticDir  string `mapstructure:"static-dir"`
	WSPath     string `mapstructure:"ws-path"`
	QueueSize  int    `mapstructure:"queue-size"`
	ChunkSize  int    `mapstructure:"chunk-size"`
	MetricAddr string `mapstructure:"metric-addr"`
	// ProxyProtocol accepts PROXY protocol headers from a load balancer.
	ProxyProtocol bool   `mapstructure:"proxy-protocol"`
	Debug         bool   `mapstructure:"debug"`
	LogFile       string `mapstructure:"log-file"`
	SentryDSN     string `mapstructure:"sentry-dsn"`
}

// DefaultOpt has every optional key at its default.
func DefaultOpt() Opt {
	return Opt{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Shell:     session.DefaultShell,
		Session:   session.DefaultName,
		Tmux:      session.DefaultTmux,
		StaticDir: DefaultStaticDir,
		WSPath:    DefaultWSPath,
		QueueSize: bridge.DefaultQueueSize,
		ChunkSize: bridge.DefaultChunkSize,
	}
}

// Validate reports every problem at once.
func (o Opt) Validate() error {
	var result *multierror.Error

	if o.Username == "" {
		result = multierror.Append(result, ErrMissingUsername)
	}
	if o.Password == "" {
		result = multierror.Append(result, ErrMissingPassword)
	}
	if o.Port < 1 || o.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("TERM_PORT must be between 1 and 65535, got %d", o.Port))
	}
	if err := session.ValidateName(o.Session); err != nil {
		result = multierror.Append(result, fmt.Errorf("TERM_SESSION: %w", err))
	}
	if o.Shell == "" {
		result = multierror.Append(result, errors.New("TERM_SHELL must not be empty"))
	}
	if o.Tmux == "" {
		result = multierror.Append(result, errors.New("TERM_TMUX must not be empty"))
	} else if _, err := o.launcher().TmuxArgv(); err != nil {
		result = multierror.Append(result, fmt.Errorf("TERM_TMUX: %w", err))
	}
	if !strings.HasPrefix(o.WSPath, "/") {
		result = multierror.Append(result, fmt.Errorf("TERM_WS_PATH must start with /, got %q", o.WSPath))
	}
	if o.QueueSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("TERM_QUEUE_SIZE must be positive, got %d", o.QueueSize))
	}
	if o.ChunkSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("TERM_CHUNK_SIZE must be positive, got %d", o.ChunkSize))
	}

	return result.ErrorOrNil()
}

// Addr is the listen address.
func (o Opt) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Opt) credentials() auth.Credentials {
	return auth.Credentials{Username: o.Username, Password: o.Password}
}

func (o Opt) launcher() session.Launcher {
	return session.Launcher{
		Tmux:    o.Tmux,
		Shell:   o.Shell,
		Session: o.Session,
	}
}
