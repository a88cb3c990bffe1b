package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/auth"
	"github.com/desertthunder/fitlink/internal/deeplink"
	"github.com/desertthunder/fitlink/internal/server"
	"github.com/desertthunder/fitlink/internal/services"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/desertthunder/fitlink/internal/tokenstore"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	fitbit     *services.FitbitService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Fitbit     *services.FitbitService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		fitbit:     opts.Fitbit,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, bridgeCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, used when the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openStore opens the configured database, applies migrations, and wraps
// it in a token store. The returned closer releases the connection.
func (r *Runner) openStore() (*tokenstore.Store, func(), error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return tokenstore.NewStore(db, r.logger), func() { db.Close() }, nil
}

// buildOrchestrator assembles the full authorization pipeline. The poller
// targets the bridge at the redirect URI's origin.
func (r *Runner) buildOrchestrator(store *tokenstore.Store) (*auth.Orchestrator, error) {
	if r.fitbit == nil {
		return nil, fmt.Errorf("%w: fitbit credentials are not configured", shared.ErrMissingCredentials)
	}

	var poller auth.Poller
	if base := r.bridgeBaseURL(); base != "" {
		poller = server.NewClient(base, r.httpClient)
	}

	return auth.NewOrchestrator(auth.Opts{
		Service:     r.fitbit,
		Store:       store,
		Validator:   tokenstore.NewValidator(r.fitbit, r.logger),
		Router:      deeplink.NewRouter(r.config.App.Scheme, r.config.App.KnownDomains, r.logger),
		Poller:      poller,
		PollEvery:   time.Duration(r.config.Poll.IntervalMS) * time.Millisecond,
		PollTimeout: time.Duration(r.config.Poll.Timeout) * time.Second,
		Logger:      r.logger,
	}), nil
}

// bridgeBaseURL derives the bridge origin from the canonical redirect URI.
func (r *Runner) bridgeBaseURL() string {
	u, err := url.Parse(r.config.Credentials.Fitbit.RedirectURI)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
