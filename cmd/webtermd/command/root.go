package command

import (
	"errors"
	"fmt"
	"os"
	"strings"

	webtermctx "github.com/owenthereal/webterm/internal/context"
	"github.com/owenthereal/webterm/internal/logging"
	"github.com/owenthereal/webterm/internal/version"
	"github.com/owenthereal/webterm/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TERM"

const envHelp = `Environment:
  TERM_USERNAME     username for basic authentication (required)
  TERM_PASSWORD     password for basic authentication (required)
  TERM_PORT         port to listen on (default 3000)
  TERM_HOST         address to bind (default 0.0.0.0)
  TERM_SHELL        shell exported to the tmux session (default /bin/sh)
  TERM_SESSION      tmux session to attach or create (default main)
  TERM_TMUX         tmux executable (default tmux)
  TERM_STATIC_DIR   directory served to authenticated browsers (default static)
  TERM_WS_PATH      websocket upgrade path (default /ws)
  TERM_QUEUE_SIZE   output chunks buffered per connection (default 100)
  TERM_CHUNK_SIZE   largest terminal read per frame (default 4096)
  TERM_METRIC_ADDR  prometheus metrics address (disabled when empty)
  TERM_PROXY_PROTOCOL  accept PROXY protocol headers from a load balancer
  TERM_DEBUG        debug logging
  TERM_LOG_FILE     also log to this file
  TERM_SENTRY_DSN   report errors to sentry`

// ConfigError is a configuration problem. The process exits with status 1.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s\n\n%s", e.Err, envHelp)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func Root() *cobra.Command {
	rootCmd := &rootCmd{}
	cmd := &cobra.Command{
		Use:           "webtermd",
		Short:         "Serve a persistent tmux session to the browser",
		Long:          "Serve a persistent tmux session to the browser over WebSocket, behind HTTP Basic authentication.\n\n" + envHelp,
		PreRunE:       rootCmd.PreRun,
		RunE:          rootCmd.Run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := server.DefaultOpt()

	cmd.PersistentFlags().String("config", "", "config file")

	cmd.PersistentFlags().StringP("username", "", "", "basic auth username")
	cmd.PersistentFlags().StringP("password", "", "", "basic auth password")
	cmd.PersistentFlags().StringP("host", "", def.Host, "address to bind")
	cmd.PersistentFlags().IntP("port", "p", def.Port, "port to listen on")
	cmd.PersistentFlags().StringP("shell", "", def.Shell, "shell exported to the tmux session")
	cmd.PersistentFlags().StringP("session", "s", def.Session, "tmux session to attach or create")
	cmd.PersistentFlags().StringP("tmux", "", def.Tmux, "tmux executable")
	cmd.PersistentFlags().StringP("static-dir", "", def.StaticDir, "directory served to authenticated browsers")
	cmd.PersistentFlags().StringP("ws-path", "", def.WSPath, "websocket upgrade path")
	cmd.PersistentFlags().IntP("queue-size", "", def.QueueSize, "output chunks buffered per connection")
	cmd.PersistentFlags().IntP("chunk-size", "", def.ChunkSize, "largest terminal read per frame")

	cmd.PersistentFlags().StringP("metric-addr", "", "", "metric server address")
	cmd.PersistentFlags().BoolP("proxy-protocol", "", false, "accept PROXY protocol headers from a load balancer")
	cmd.PersistentFlags().BoolP("debug", "", false, "debug")
	cmd.PersistentFlags().StringP("log-file", "", "", "also log to this file")
	cmd.PersistentFlags().StringP("sentry-dsn", "", "", "sentry dsn")

	cmd.AddCommand(versionCmd())

	return cmd
}

type rootCmd struct {
	opt server.Opt
}

func (cmd *rootCmd) PreRun(c *cobra.Command, args []string) error {
	opt, err := loadOpt(c)
	if err != nil {
		return err
	}

	cmd.opt = opt
	return nil
}

func (cmd *rootCmd) Run(c *cobra.Command, args []string) error {
	bootstrap := webtermctx.Logger(c.Context())
	if bootstrap == nil {
		return fmt.Errorf("logger not available")
	}

	logger, err := newLogger(cmd.opt)
	if err != nil {
		return err
	}
	defer func() {
		if err := logger.Close(); err != nil {
			bootstrap.Error("error closing logger", "error", err)
		}
	}()

	return server.Start(webtermctx.WithLogger(c.Context(), logger), cmd.opt)
}

func newLogger(opt server.Opt) (*logging.Logger, error) {
	opts := []logging.Option{
		logging.Console(),
		logging.Attrs("service", version.Product, "session", opt.Session),
	}
	if opt.Debug {
		opts = append(opts, logging.Debug())
	}
	if opt.LogFile != "" {
		opts = append(opts, logging.File(opt.LogFile))
	}
	if opt.SentryDSN != "" {
		opts = append(opts, logging.Sentry(opt.SentryDSN))
	}

	return logging.New(opts...)
}

// loadOpt reads flags, TERM_* environment variables and the optional config
// file, then validates the result.
func loadOpt(c *cobra.Command) (server.Opt, error) {
	opt := server.DefaultOpt()
	if err := unmarshalFlags(c, &opt); err != nil {
		return opt, &ConfigError{Err: err}
	}

	if err := opt.Validate(); err != nil {
		return opt, &ConfigError{Err: err}
	}

	return opt, nil
}

func unmarshalFlags(cmd *cobra.Command, opts interface{}) error {
	v := viper.New()

	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flagName := flag.Name
		if flagName != "config" && flagName != "help" {
			if err := v.BindPFlag(flagName, flag); err != nil {
				panic(fmt.Errorf("error binding flag '%s': %w", flagName, err).Error())
			}
		}
	})

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(envPrefix)

	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("error loading config file %s: %w", cfgFile, err)
		}
		v.SetConfigFile(cfgFile)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error loading config file %s: %w", cfgFile, err)
			}
		}
	}

	return v.Unmarshal(opts)
}
