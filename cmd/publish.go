package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpub/internal/formatter"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/tasks"
	"github.com/desertthunder/ytpub/internal/ui"
	"github.com/urfave/cli/v3"
)

const watchLogName = "ytpub-watch.log"

// PublishUpload uploads new assets, then retries failed and removed ones.
func (r *Runner) PublishUpload(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.PublishOpts{
		Category: cmd.String("category"),
		Privacy:  cmd.String("privacy"),
		Force:    cmd.Bool("force"),
	}
	return r.runBatch(ctx, cmd, "Upload", func(b *tasks.Batch) ui.RunFunc {
		return func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
			return b.Upload(ctx, opts, progress)
		}
	})
}

// PublishStatus reconciles every processing, published and duplicated video.
func (r *Runner) PublishStatus(ctx context.Context, cmd *cli.Command) error {
	return r.runBatch(ctx, cmd, "Status", func(b *tasks.Batch) ui.RunFunc { return b.Status })
}

// PublishPlaylists synchronizes playlist membership.
func (r *Runner) PublishPlaylists(ctx context.Context, cmd *cli.Command) error {
	return r.runBatch(ctx, cmd, "Playlists", func(b *tasks.Batch) ui.RunFunc { return b.Playlists })
}

// PublishMetadata pushes stale metadata.
func (r *Runner) PublishMetadata(ctx context.Context, cmd *cli.Command) error {
	return r.runBatch(ctx, cmd, "Metadata", func(b *tasks.Batch) ui.RunFunc { return b.Metadata })
}

// runBatch runs one batch pass, either printing progress line by line or, with --watch,
// inside the interactive monitor. Logs go to a file while the monitor owns the terminal.
//
// The command fails when any asset failed so that schedulers notice.
func (r *Runner) runBatch(ctx context.Context, cmd *cli.Command, title string, pass func(*tasks.Batch) ui.RunFunc) error {
	watch := cmd.Bool("watch")
	if watch {
		restore, err := r.logToFile(filepath.Join(filepath.Dir(r.config.Database.Path), watchLogName))
		if err != nil {
			return err
		}
		defer restore()
	}

	_, batch, err := r.publisher(ctx)
	if err != nil {
		return err
	}
	run := pass(batch)

	var result *tasks.BatchResult
	if watch {
		monitor := ui.NewMonitor(ctx, title, run)
		if _, err := tea.NewProgram(monitor, tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		result, err = monitor.Result()
	} else {
		result, err = r.printProgress(ctx, run)
	}

	r.writePlain("\n%s", ui.Summary(title, result, err))
	if err != nil {
		return err
	}
	if n := len(result.Failed); n > 0 {
		return fmt.Errorf("%d of %d asset(s) failed", n, result.Total())
	}
	return nil
}

// printProgress runs a batch and writes each progress update as it arrives.
func (r *Runner) printProgress(ctx context.Context, run ui.RunFunc) (*tasks.BatchResult, error) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if line := ui.ProgressLine(update); line != "" {
				r.writePlain("%s\n", line)
			}
		}
	}()

	result, err := run(ctx, progress)
	close(progress)
	<-done
	return result, err
}

// logToFile sends runner logs to path until the returned function is called.
func (r *Runner) logToFile(path string) (func(), error) {
	previous := r.logger
	logger, f, err := shared.NewFileLogger(path, previous.GetLevel())
	if err != nil {
		return nil, err
	}
	r.SetLogger(logger)

	return func() {
		r.SetLogger(previous)
		f.Close()
	}, nil
}

// PublishDelete deletes the video of an asset. A record whose asset is gone is deleted as an orphan.
func (r *Runner) PublishDelete(ctx context.Context, cmd *cli.Command) error {
	assetID := cmd.String("asset")

	engine, _, err := r.publisher(ctx)
	if err != nil {
		return err
	}

	asset, err := r.assets.Get(assetID)
	switch {
	case err == nil:
		if err := engine.Delete(ctx, asset); err != nil {
			return err
		}
	case errors.Is(err, shared.ErrAssetNotFound):
		record, rerr := r.records.GetByAssetID(assetID)
		if rerr != nil {
			return fmt.Errorf("%w: %w", err, rerr)
		}
		r.logger.Warn("deleting publication of missing asset", "asset", assetID, "video", record.VideoID())
		if err := engine.DeleteOrphan(ctx, record); err != nil {
			return err
		}
	default:
		return err
	}

	return r.writePlain("%s Removed the video of %s\n", ui.OK("✓"), assetID)
}

// PublishRecover rebuilds the record of an asset from its stored watch link.
func (r *Runner) PublishRecover(ctx context.Context, cmd *cli.Command) error {
	engine, _, err := r.publisher(ctx)
	if err != nil {
		return err
	}

	asset, err := r.assets.Get(cmd.String("asset"))
	if err != nil {
		return err
	}

	record, err := engine.Recover(ctx, asset)
	if err != nil {
		return err
	}

	return r.writePlain("%s %s: %s %s\n", ui.OK("✓"), asset.Title(), ui.Status(record.Status()), record.Link())
}

// PublishReport exports the publication state to stdout or to a file.
func (r *Runner) PublishReport(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if s := cmd.String("status"); s != "" {
		if !models.Status(s).Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, s)
		}
		criteria["status"] = s
	}

	records, err := r.records.List(criteria)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.AssetID())
	}
	assets, err := r.assets.List(map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(assets))
	for _, a := range assets {
		titles[a.ID()] = a.Title()
	}

	report := formatter.NewReport(records, titles, r.now())
	report.SortRows()

	format := cmd.String("format")
	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteReport(report, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path, "publications", report.Total())
		return r.writePlain("%s Report written to %s\n", ui.OK("✓"), path)
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
