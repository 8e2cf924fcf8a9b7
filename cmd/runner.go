package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpub/internal/formatter"
	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/repositories"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/tasks"
	"github.com/desertthunder/ytpub/internal/telemetry"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, the remote client and the engine are opened on first use so that commands
// which need none of them (setup, report on an empty catalog) never touch credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	metrics    *telemetry.Metrics
	now        func() time.Time

	db       *sql.DB
	assets   *repositories.AssetRepository
	labels   *repositories.LabelRepository
	records  *repositories.PublicationRepository
	remote   services.RemoteClient
	prober   tasks.Prober
	notifier notify.Notifier
	engine   *tasks.Engine
	batch    *tasks.Batch
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Metrics    *telemetry.Metrics
	Now        func() time.Time

	DB       *sql.DB               // opened from config when nil
	Remote   services.RemoteClient // built from the configured credential files when nil
	Prober   tasks.Prober
	Notifier notify.Notifier // built from the notify config when nil
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
	if opts.Metrics == nil {
		opts.Metrics = telemetry.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		metrics:    opts.Metrics,
		now:        opts.Now,
		remote:     opts.Remote,
		prober:     opts.Prober,
		notifier:   opts.Notifier,
	}
	if opts.DB != nil {
		r.useDatabase(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, assetCommand, publishCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration file named by --config and applies --verbose.
//
// A missing file keeps the defaults; a file that fails to parse or validate stops the command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		return ctx, nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) useDatabase(db *sql.DB) {
	r.db = db
	r.assets = repositories.NewAssetRepository(db)
	r.labels = repositories.NewLabelRepository(db)
	r.records = repositories.NewPublicationRepository(db)
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}

	r.useDatabase(db)
	return db, nil
}

// Close releases the database connection.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// buildNotifier logs every message and, when a webhook is configured, posts it rendered with
// [formatter.NotificationText].
func (r *Runner) buildNotifier() (notify.Notifier, error) {
	if r.notifier != nil {
		return r.notifier, nil
	}

	cfg := r.config.Notify
	if !cfg.Enabled {
		return notify.Nop{}, nil
	}

	notifiers := notify.Multi{notify.NewLogNotifier(shared.WithLogger(r.logger, "component", "notify"))}
	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.WebhookURL, notify.WebhookOpts{
			Sender:    cfg.SenderName,
			Recipient: cfg.Recipient,
			Timeout:   cfg.Timeout,
			Render:    formatter.NotificationText,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}
	return notifiers, nil
}

// publisher returns the engine and batch driver, building the remote client on first use.
func (r *Runner) publisher(ctx context.Context) (*tasks.Engine, *tasks.Batch, error) {
	if r.engine != nil {
		return r.engine, r.batch, nil
	}

	if _, err := r.database(); err != nil {
		return nil, nil, err
	}

	if r.remote == nil {
		opts := services.YouTubeOptsFromConfig(r.config.YouTube)
		opts.Logger = shared.WithLogger(r.logger, "component", "youtube")
		opts.Metrics = r.metrics

		yt, err := services.NewYouTubeServiceFromFiles(ctx, r.config.YouTube.ClientSecretPath, r.config.YouTube.TokenPath, opts)
		if err != nil {
			return nil, nil, err
		}
		r.remote = yt
	}

	notifier, err := r.buildNotifier()
	if err != nil {
		return nil, nil, err
	}

	engine, err := tasks.NewEngine(tasks.EngineOpts{
		Remote:      r.remote,
		Records:     r.records,
		Labels:      r.labels,
		Assets:      r.assets,
		Prober:      r.prober,
		Notifier:    notifier,
		Logger:      shared.WithLogger(r.logger, "component", "engine"),
		Metrics:     r.metrics,
		Publication: r.config.Publication,
		YouTube:     r.config.YouTube,
		Now:         r.now,
	})
	if err != nil {
		return nil, nil, err
	}

	r.engine = engine
	r.batch = tasks.NewBatch(engine)
	return r.engine, r.batch, nil
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
