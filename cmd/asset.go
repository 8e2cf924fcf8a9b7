package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
	"github.com/desertthunder/ytpub/internal/ui"
	"github.com/urfave/cli/v3"
)

// importFile is the TOML document read by asset import.
//
//	[[label]]
//	code = "YOUTUBEKEYNOTES"
//	title = "Keynotes"
//	parent = "YOUTUBE"
//
//	[[asset]]
//	title = "Opening keynote"
//	track = "media/keynote.mp4"
//	labels = ["PUDEAUTO", "YOUTUBEKEYNOTES"]
type importFile struct {
	Labels []importLabel `toml:"label"`
	Assets []importAsset `toml:"asset"`
}

type importLabel struct {
	Code   string `toml:"code"`
	Title  string `toml:"title"`
	Parent string `toml:"parent"`
}

type importAsset struct {
	Title       string            `toml:"title"`
	Subtitle    string            `toml:"subtitle"`
	Description string            `toml:"description"`
	Series      string            `toml:"series"`
	Keywords    string            `toml:"keywords"`
	Status      string            `toml:"status"`
	Track       string            `toml:"track"` // relative paths resolve against the import file
	Labels      []string          `toml:"labels"`
	Properties  map[string]string `toml:"properties"`
}

// assetRow is the JSON shape of asset list output.
type assetRow struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      string        `json:"status"`
	Labels      []string      `json:"labels"`
	VideoID     string        `json:"video_id,omitempty"`
	Publication models.Status `json:"publication,omitempty"`
}

// AssetImport creates the labels and assets described by a TOML file.
//
// Labels that already exist are reused. Assets are always created.
func (r *Runner) AssetImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to import file", shared.ErrMissingArgument)
	}

	var file importFile
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	for _, key := range md.Undecoded() {
		r.logger.Warn("ignoring unknown key", "file", path, "key", key.String())
	}

	if _, err := r.database(); err != nil {
		return err
	}

	labels := map[string]*models.Label{}
	lookup := func(code string) (*models.Label, error) {
		if l, ok := labels[code]; ok {
			return l, nil
		}
		l, err := r.labels.GetByCode(code)
		if err != nil {
			return nil, err
		}
		labels[code] = l
		return l, nil
	}

	for _, il := range file.Labels {
		if _, err := lookup(il.Code); err == nil {
			r.writePlain("%s label %s exists\n", ui.Help("="), il.Code)
			continue
		} else if !errors.Is(err, shared.ErrLabelNotFound) {
			return err
		}

		var parent *models.Label
		if il.Parent != "" {
			if parent, err = lookup(il.Parent); err != nil {
				return fmt.Errorf("parent of label %s: %w", il.Code, err)
			}
		}

		label := models.NewLabel(0, il.Code, il.Title, parent)
		if err := r.labels.Create(label); err != nil {
			return fmt.Errorf("failed to create label %s: %w", il.Code, err)
		}
		labels[il.Code] = label
		r.writePlain("%s label %s\n", ui.OK("+"), il.Code)
	}

	dir := filepath.Dir(path)
	for i, ia := range file.Assets {
		track := ia.Track
		if track != "" && !filepath.IsAbs(track) {
			track = filepath.Join(dir, track)
		}

		asset := models.NewAsset(0, ia.Title, track)
		asset.SetSubtitle(ia.Subtitle)
		asset.SetDescription(ia.Description)
		asset.SetSeriesTitle(ia.Series)
		asset.SetKeywords(ia.Keywords)
		if ia.Status != "" {
			asset.SetStatus(models.AssetStatus(ia.Status))
		}
		for k, v := range ia.Properties {
			asset.SetProperty(k, v)
		}
		for _, code := range ia.Labels {
			label, err := lookup(code)
			if err != nil {
				return fmt.Errorf("asset %d (%s): %w", i+1, ia.Title, err)
			}
			asset.AddLabel(label)
		}

		if err := r.assets.Create(asset); err != nil {
			return fmt.Errorf("asset %d (%s): %w", i+1, ia.Title, err)
		}
		r.logger.Debug("imported asset", "asset", asset.ID(), "title", asset.Title())
		r.writePlain("%s %s %s\n", ui.OK("+"), asset.ID(), asset.Title())
	}

	return r.writePlain("\nImported %d label(s) and %d asset(s)\n", len(file.Labels), len(file.Assets))
}

// AssetList prints assets with their publication status.
func (r *Runner) AssetList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if codes := cmd.StringSlice("label"); len(codes) > 0 {
		criteria["labels"] = codes
	}

	assets, err := r.assets.List(criteria)
	if err != nil {
		return err
	}

	rows := make([]assetRow, 0, len(assets))
	for _, a := range assets {
		row := assetRow{ID: a.ID(), Title: a.Title(), Status: string(a.Status()), Labels: []string{}}
		for _, l := range a.Labels() {
			row.Labels = append(row.Labels, l.Code())
		}

		record, err := r.records.GetByAssetID(a.ID())
		switch {
		case err == nil:
			row.VideoID = record.VideoID()
			row.Publication = record.Status()
		case !errors.Is(err, shared.ErrRecordNotFound):
			return err
		}
		rows = append(rows, row)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	if len(rows) == 0 {
		return r.writePlain("No assets\n")
	}
	for _, row := range rows {
		publication := ui.Help("unpublished")
		if row.Publication != "" {
			publication = ui.Status(row.Publication)
		}
		r.writePlain("%s  %-40s %s [%s]\n", row.ID, row.Title, publication, strings.Join(row.Labels, ", "))
	}
	return nil
}
