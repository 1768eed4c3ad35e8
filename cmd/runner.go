package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

// Runner holds the dependencies of CLI commands and provides an action for each.
//
// Config, store and client are resolved on first use, so commands that only
// need the config (setup, auth) never open the database or build a client.
type Runner struct {
	config  *shared.Config
	store   *repositories.Store
	client  services.Catalog
	db      *sql.DB
	logger  *log.Logger
	output  io.Writer
	palette *Palette
}

// RunnerOpts contains configuration options for creating a Runner. Anything
// left nil is resolved from the --config file when a command needs it.
type RunnerOpts struct {
	Config *shared.Config
	Store  *repositories.Store
	Client services.Catalog
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		store:   opts.Store,
		client:  opts.Client,
		logger:  opts.Logger,
		output:  opts.Output,
		palette: styles,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spotsync",
		Usage:   "Mirror a Spotify library into a local catalog and keep playlists in sync",
		Version: version,
		Writer:  r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SPOTSYNC_CONFIG"),
			},
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, populateCommand, syncCommand, pushCommand, playlistsCommand, tracksCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Close releases the database opened by a command.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// loadConfig resolves the config file once and applies its log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	config, err := shared.ResolveConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	shared.ConfigureLogger(r.logger, config.Log.Level)
	r.config = config
	return config, nil
}

// openStore opens and migrates the configured database.
func (r *Runner) openStore(cmd *cli.Command) (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("opening database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.store = repositories.NewStore(db)
	return r.store, nil
}

// remote builds the Spotify client from the configured credentials.
func (r *Runner) remote(ctx context.Context, cmd *cli.Command) (services.Catalog, error) {
	if r.client != nil {
		return r.client, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	tokens, err := shared.NewTokenSource(ctx, config.Credentials.Spotify)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'spotsync auth' first)", err)
	}

	r.client = services.NewSpotifyClient(services.ClientOpts{
		BaseURL:          config.API.BaseURL,
		Timeout:          config.API.Timeout(),
		TokenSource:      tokens,
		Logger:           r.logger,
		PlaylistPageSize: config.API.PlaylistPageSize,
		ChunkSize:        config.API.PushChunkSize,
		Middleware: []services.Middleware{
			services.StaticHeaders(map[string]string{"User-Agent": "spotsync/" + version}),
		},
	})
	return r.client, nil
}

// runJobs queues jobs on a fresh engine, prints progress while they run and
// waits for every job, including the sync and push jobs they queue.
func (r *Runner) runJobs(ctx context.Context, cmd *cli.Command, jobs ...tasks.Job) ([]tasks.JobStatus, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := r.openStore(cmd)
	if err != nil {
		return nil, err
	}
	client, err := r.remote(ctx, cmd)
	if err != nil {
		return nil, err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.writeUpdate(update)
		}
	}()

	engine := tasks.NewEngine(tasks.EngineOpts{
		Store:    store,
		Client:   client,
		Sync:     config.Sync,
		Queue:    config.Queue,
		PageSize: config.API.PageSize,
		Progress: progress,
		Logger:   r.logger,
	})
	engine.Start(ctx)

	var errs []error
	for _, job := range jobs {
		if _, err := engine.Submit(job); err != nil {
			errs = append(errs, err)
		}
	}

	if err := engine.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	close(progress)
	<-printed

	statuses := engine.Queue.Statuses()
	r.writeStatuses(statuses)

	for _, st := range engine.Queue.Failed() {
		errs = append(errs, fmt.Errorf("%s job %s: %w", st.Job.Kind, st.Job.ID, st.Err))
	}
	return statuses, errors.Join(errs...)
}

func (r *Runner) writeUpdate(update tasks.ProgressUpdate) {
	switch update.State {
	case tasks.Done:
		r.writePlain("%s %s\n", r.palette.OK("✓"), update.Message)
	case tasks.Failed:
		r.writePlain("%s %s\n", r.palette.Err("✗"), update.Message)
	default:
		r.writePlain("%s %s\n", r.palette.Help(update.State.String()), update.Message)
	}
}

func (r *Runner) writeStatuses(statuses []tasks.JobStatus) {
	if len(statuses) == 0 {
		return
	}

	r.writePlainHeader("Jobs")
	for _, st := range statuses {
		label := r.palette.OK(string(st.Status))
		if st.Status == tasks.StatusFailed {
			label = r.palette.Err(string(st.Status))
		}
		line := fmt.Sprintf("%-16s %s", st.Job.Kind, label)
		if st.Job.PlaylistID != 0 {
			line += fmt.Sprintf(" playlist=%d", st.Job.PlaylistID)
		}
		if st.Attempts > 1 {
			line += fmt.Sprintf(" attempts=%d", st.Attempts)
		}
		r.writePlain("%s\n", line)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("\n%s\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
