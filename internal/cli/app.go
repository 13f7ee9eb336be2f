// Package cli implements the gpslog command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gps-logger/backend/internal/config"
	"github.com/gps-logger/backend/internal/logging"
	"github.com/gps-logger/backend/internal/storage"
	"github.com/gps-logger/backend/internal/webform"
)

// ConfigEnv overrides the default config path.
const ConfigEnv = config.EnvPrefix + "_CONFIG"

// Pusher submits a location to a remote settings form.
type Pusher interface {
	SetLocation(ctx context.Context, lat, lon float64) (webform.Result, error)
}

// Deps are the collaborators a command run needs. Tests replace them.
type Deps struct {
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig func(path string) (*config.AppConfig, error)
	OpenStore  func(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (storage.Store, error)
	OpenDevice func(path string) (io.ReadCloser, error)
	NewPusher  func(cfg config.BirdnetConfig, log zerolog.Logger) Pusher

	// Location is the zone timestamp prefixes are read in.
	Location *time.Location
	Getenv   func(string) string
}

// DefaultDeps wires the real implementations.
func DefaultDeps() Deps {
	return Deps{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: config.LoadConfig,
		OpenStore: func(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (storage.Store, error) {
			s, err := storage.Connect(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenDevice: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		NewPusher: func(cfg config.BirdnetConfig, log zerolog.Logger) Pusher {
			return webform.NewClient(cfg, log)
		},
		Location: time.Local,
		Getenv:   os.Getenv,
	}
}

// App holds the state of one invocation.
type App struct {
	deps       Deps
	configPath string
	debug      bool

	cfg *config.AppConfig
	log *logging.Logger
}

func NewApp(deps Deps) *App {
	return &App{deps: deps}
}

// Run executes the command line and returns the process exit code.
// Errors and panics are logged here and never escape.
func Run(ctx context.Context, args []string, deps Deps) (code int) {
	a := NewApp(deps)
	defer a.close()

	defer func() {
		if r := recover(); r != nil {
			a.logger().Error().Str("panic", fmt.Sprint(r)).Msg("Exception: unexpected failure")
			code = ExitFailure
		}
	}()

	root := a.RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		a.report(err)
	}
	return ExitCode(err)
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	defaultConfig := config.DefaultPath
	if a.deps.Getenv != nil {
		if p := a.deps.Getenv(ConfigEnv); p != "" {
			defaultConfig = p
		}
	}

	root := &cobra.Command{
		Use:   "gpslog",
		Short: "Record GPS fixes and export them as GPX or KML tracks",
		Long: `
Record GPS fixes and export them as GPX or KML tracks

Configurable Options:

Options are read from a JSON or YAML configuration file and may be
overridden with environment variables.

  database_filename   (string) (GPSLOG_DATABASE_FILENAME)
  database_driver     (string) (GPSLOG_DATABASE_DRIVER)
  table_name          (string) (GPSLOG_TABLE_NAME)
  log.level           (string) (GPSLOG_LOG_LEVEL)
  log.file            (string) (GPSLOG_LOG_FILE)
  recorder.device     (string) (GPSLOG_RECORDER_DEVICE)
  birdnet.settings_url (string) (GPSLOG_BIRDNET_SETTINGS_URL)
  birdnet.password    (string) (GPSLOG_BIRDNET_PASSWORD)
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.deps.Stdout)
	root.SetErr(a.deps.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewUsageError(err.Error())
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfig, "Path to a configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		a.exportCommand(),
		a.recordCommand(),
		a.birdnetCommand(),
	)
	return root
}

// setup loads the config and builds the logger. Commands call it once their
// arguments are known to be valid.
func (a *App) setup() error {
	cfg, err := a.deps.LoadConfig(a.configPath)
	if err != nil {
		return NewConfigError(err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return NewConfigError(err)
	}

	log, err := logging.New(cfg.Log, a.deps.Stderr, a.debug)
	if err != nil {
		return NewConfigError(err)
	}

	a.cfg = cfg
	a.log = log
	a.log.Debug().Str("config", a.configPath).Msg("Configuration loaded")
	return nil
}

// openStore connects to the configured database.
func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	store, err := a.deps.OpenStore(ctx, a.cfg.Database(), a.log.Logger)
	if err != nil {
		return nil, NewStorageError("failed to connect to database", err)
	}
	return store, nil
}

// logger returns the configured logger, or a console logger when setup
// has not run.
func (a *App) logger() zerolog.Logger {
	if a.log != nil {
		return a.log.Logger
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: a.deps.Stderr, TimeFormat: time.RFC3339, NoColor: true}).
		With().Timestamp().Logger()
}

func (a *App) report(err error) {
	var cliErr *Error
	if !errors.As(err, &cliErr) {
		// cobra's own parse failures
		fmt.Fprintln(a.deps.Stderr, "Error: "+err.Error())
		return
	}
	switch cliErr.Code {
	case CodeConfig, CodeStorage, CodeExport, CodePush, CodeDevice:
		a.logger().Error().Str("code", cliErr.Code).Msg("Exception: " + userMessage(err))
	default:
		fmt.Fprintln(a.deps.Stderr, "Error: "+userMessage(err))
	}
}

func (a *App) close() {
	if a.log != nil {
		a.log.Close()
	}
}

func (a *App) stdout() io.Writer {
	return a.deps.Stdout
}
