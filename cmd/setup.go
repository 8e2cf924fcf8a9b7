package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// SetupDatabase initializes the database and lists the applied migrations.
// With --rollback it reverts the newest migration instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return err
	}

	if cmd.Bool("rollback") {
		m, err := shared.RollbackMigration(db)
		if err != nil {
			return err
		}
		r.logger.Warn("migration rolled back", "version", m.Version, "name", m.Name)
		return r.writePlain("~ Rolled back %04d_%s\n", m.Version, m.Name)
	}

	applied, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}
	for _, m := range applied {
		r.writePlain("  %04d_%s  %s\n", m.Version, m.Name, m.AppliedAt.Format(time.DateTime))
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)
}

// labelDef is one label the setup command guarantees.
type labelDef struct {
	code    string
	title   string
	parent  string
	metatag bool
}

// labelTree lists the labels publication depends on, parents first.
func labelTree(c shared.PublicationConfig) []labelDef {
	defs := []labelDef{
		{code: c.RootLabel, title: "Root"},
		{code: c.PlaylistRoot, title: c.PlaylistRootTitle, parent: c.RootLabel},
		{code: c.ChannelsRoot, title: "Publication channels", parent: c.RootLabel},
		{code: c.PublishedMarker, title: c.PublishedMarkerTitle, parent: c.ChannelsRoot, metatag: true},
		{code: c.DefaultPlaylist, title: c.DefaultPlaylistTitle, parent: c.PlaylistRoot},
	}

	seen := map[string]bool{}
	var out []labelDef
	for _, s := range defs {
		if s.code == "" {
			continue
		}
		seen[s.code] = true
		out = append(out, s)
	}

	for _, code := range c.RequiredLabels {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, labelDef{code: code, title: code, parent: c.ChannelsRoot, metatag: true})
	}
	return out
}

// SetupLabels creates the label tree publication relies on. Existing labels are kept;
// with --force their titles are reset to the configured ones.
func (r *Runner) SetupLabels(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}
	force := cmd.Bool("force")

	created := map[string]*models.Label{}
	for _, def := range labelTree(r.config.Publication) {
		label, err := r.labels.GetByCode(def.code)
		switch {
		case err == nil:
			if force && def.title != "" && label.Title() != def.title {
				label.SetTitle(def.title)
				if err := r.labels.Update(label); err != nil {
					return fmt.Errorf("failed to update label %s: %w", def.code, err)
				}
				r.writePlain("%s %s (%s) updated\n", ui.Warn("~"), def.code, label.Title())
			} else {
				r.writePlain("%s %s exists\n", ui.Help("="), def.code)
			}
		case errors.Is(err, shared.ErrLabelNotFound):
			var parent *models.Label
			if def.parent != "" {
				if parent = created[def.parent]; parent == nil {
					if parent, err = r.labels.GetByCode(def.parent); err != nil {
						return fmt.Errorf("parent of %s: %w", def.code, err)
					}
				}
			}

			title := def.title
			if title == "" {
				title = def.code
			}
			label = models.NewLabel(0, def.code, title, parent)
			label.SetMetatag(def.metatag)
			if err := r.labels.Create(label); err != nil {
				return fmt.Errorf("failed to create label %s: %w", def.code, err)
			}
			r.logger.Info("created label", "code", def.code, "id", label.ID())
			r.writePlain("%s %s (%s)\n", ui.OK("+"), def.code, title)
		default:
			return err
		}
		created[def.code] = label
	}
	return nil
}
