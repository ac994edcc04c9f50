package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vango-dev/devstack"
	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/metrics"
)

// devFlags holds the flags shared by dev and config.
type devFlags struct {
	configPath string
	envFile    string
	port       int
	wsPort     int
	host       string
	verbose    bool
}

func (f *devFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file (default: devstack.json or devstack.yaml in the project root)")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Environment file loaded before the config")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to run on (default from config)")
	cmd.Flags().IntVar(&f.wsPort, "ws-port", 0, "Base port of the reload channels (default from config)")
	cmd.Flags().StringVarP(&f.host, "host", "H", "", "Host to bind to (default from config)")
}

// apply overrides cfg with the flags that were set.
func (f *devFlags) apply(cfg *config.Config) {
	if f.port > 0 {
		cfg.Dev.Port = f.port
	}
	if f.wsPort > 0 {
		cfg.Dev.WSPort = f.wsPort
	}
	if f.host != "" {
		cfg.Dev.Host = f.host
	}
}

// load reads the env file and the config, then applies DEVSTACK_* variables
// and flags, in that order.
func (f *devFlags) load(envFileSet bool) (*config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			if envFileSet || !stderrors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", f.envFile, err)
			}
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func devCmd() *cobra.Command {
	var flags devFlags

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start one dev server per router behind a single HTTP server.

Static routers are served as public assets. Every other router gets
its own dev server with a reload channel on ws-port + router index.

Examples:
  devstack dev
  devstack dev --port=8080
  devstack dev --config=devstack.yaml --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd.Flags().Changed("env-file"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDev(ctx, cmd.OutOrStdout(), cfg, flags.verbose)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log every request")

	return cmd
}

func runDev(ctx context.Context, out io.Writer, cfg *config.Config, verbose bool) error {
	app, err := devstack.CreateAppFromConfig(cfg)
	if err != nil {
		return err
	}

	session := uuid.NewString()
	logger := newLogger(out, verbose)

	printBanner(out)
	fmt.Fprintf(out, "  dev  %d routers\n\n", len(app.Routers()))

	srv := devstack.CreateDevServer(app, devstack.DevServerOptions{
		Port:        cfg.Dev.Port,
		Host:        cfg.Dev.Host,
		Dev:         true,
		WS:          devstack.WSOptions{Port: cfg.Dev.WSPort},
		ServerEntry: cfg.Dev.ServerEntry,
		Ignore:      cfg.Dev.Ignore,
		SessionID:   session,
		Logger:      logger,
		Metrics:     metrics.New(prometheus.NewRegistry()),
	})

	err = srv.Start(ctx)
	if err == nil || stderrors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\n  Shutting down...")
		return nil
	}
	return err
}

// newLogger returns the console logger of the CLI.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
