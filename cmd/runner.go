package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/repositories"
	"github.com/desertthunder/radar/internal/services"
	"github.com/desertthunder/radar/internal/session"
	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/tasks"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies that need configuration are built on first use, after the command's --config flag is known.
type Runner struct {
	config     *shared.Config
	configPath string
	exchanger  *session.OAuthExchanger
	session    *session.Session
	catalog    tasks.Catalog
	api        *services.APIService
	db         *sql.DB
	runs       *repositories.RunRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.ReleaseEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Session    *session.Session
	Catalog    tasks.Catalog
	Runs       *repositories.RunRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
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
		configPath: opts.ConfigPath,
		session:    opts.Session,
		catalog:    opts.Catalog,
		runs:       opts.Runs,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, buildCommand, serveCommand, historyCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the --config file once, falling back to defaults when it does not exist.
//
// Environment overrides from .env and the process environment are applied on top.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		r.configPath = "config.toml"
	}

	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Warn("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
	case err != nil:
		return nil, err
	}

	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}
	shared.ApplyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.configPath, err)
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))

	r.config = config
	return config, nil
}

// ensureSession builds the OAuth exchanger and a session restored from the stored tokens.
//
// Every credential the session receives is written back to the token fields of the config file.
func (r *Runner) ensureSession(cmd *cli.Command) (*session.Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	exchanger, err := session.NewOAuthExchanger(config.Credentials.Spotify)
	if err != nil {
		return nil, err
	}

	sess := session.New(exchanger, shared.WithLogger(r.logger, "component", "session"))
	if cred := config.Credentials.Spotify.Credential(); !cred.Empty() {
		sess.Restore(cred)
	}
	sess.OnCredential(func(cred models.Credential) {
		if err := config.Credentials.Spotify.Update(cred); err != nil {
			r.logger.Warn("failed to store credential", "error", err)
			return
		}
		if err := r.saveCredential(cred); err != nil {
			r.logger.Warn("failed to save config", "path", r.configPath, "error", err)
		}
	})

	r.exchanger = exchanger
	r.session = sess
	return sess, nil
}

// saveCredential writes cred into the config file, re-reading the file so values
// taken from the environment are never persisted.
func (r *Runner) saveCredential(cred models.Credential) error {
	stored, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		stored = shared.DefaultConfig()
	case err != nil:
		return err
	}
	if err := stored.Credentials.Spotify.Update(cred); err != nil {
		return err
	}
	return shared.SaveConfig(r.configPath, stored)
}

func (r *Runner) serviceOptions(config *shared.Config) []services.Option {
	opts := []services.Option{
		services.WithHTTPClient(r.httpClient),
		services.WithRateLimit(config.API.RequestsPerSecond, config.API.Burst),
		services.WithLogger(shared.WithLogger(r.logger, "component", "spotify")),
	}
	if config.API.BaseURL != "" {
		opts = append(opts, services.WithBaseURL(config.API.BaseURL))
	}
	return opts
}

// ensureCatalog builds the Spotify service the build engine reads from.
func (r *Runner) ensureCatalog(cmd *cli.Command) (tasks.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sess, err := r.ensureSession(cmd)
	if err != nil {
		return nil, err
	}

	spotify, err := services.NewSpotifyService(sess, r.serviceOptions(config)...)
	if err != nil {
		return nil, err
	}

	r.catalog = spotify
	return spotify, nil
}

// ensureAPI builds the raw API client used by the api commands.
func (r *Runner) ensureAPI(cmd *cli.Command) (*services.APIService, error) {
	if r.api != nil {
		return r.api, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sess, err := r.ensureSession(cmd)
	if err != nil {
		return nil, err
	}

	r.api = services.NewAPIService(sess, r.serviceOptions(config)...)
	return r.api, nil
}

// ensureRuns opens the history database and applies pending migrations.
func (r *Runner) ensureRuns(cmd *cli.Command) (*repositories.RunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

// ensureEngine builds the release engine, recording runs unless record is false.
func (r *Runner) ensureEngine(cmd *cli.Command, record bool) (*tasks.ReleaseEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	catalog, err := r.ensureCatalog(cmd)
	if err != nil {
		return nil, err
	}

	engine := tasks.NewReleaseEngine(catalog, shared.WithLogger(r.logger, "component", "engine"))
	if record {
		runs, err := r.ensureRuns(cmd)
		if err != nil {
			r.logger.Warn("run history unavailable", "error", err)
		} else {
			engine.SetRecorder(runs)
		}
	}

	r.engine = engine
	return engine, nil
}

// Close releases the history database when it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
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

func (r *Runner) writeYAML(data any) error {
	output, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

// writeStructured writes data as YAML or JSON according to the --yaml, --json and --pretty flags.
//
// It reports false when neither format was requested.
func (r *Runner) writeStructured(cmd *cli.Command, data any) (bool, error) {
	switch {
	case cmd.Bool("yaml"):
		return true, r.writeYAML(data)
	case cmd.Bool("json"):
		return true, r.writeJSON(data, cmd.Bool("pretty"))
	default:
		return false, nil
	}
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
