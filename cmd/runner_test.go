package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
	"github.com/desertthunder/ytpub/internal/services"
	"github.com/desertthunder/ytpub/internal/shared"
	tu "github.com/desertthunder/ytpub/internal/testing"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type harness struct {
	runner   *Runner
	output   *bytes.Buffer
	remote   *tu.FakeRemote
	notifier *tu.RecordingNotifier
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	h := &harness{
		output:   &bytes.Buffer{},
		remote:   tu.NewFakeRemote(),
		notifier: &tu.RecordingNotifier{},
		dir:      dir,
	}
	h.runner = NewRunner(RunnerOpts{
		Logger:   shared.NewLogger(io.Discard),
		Output:   h.output,
		DB:       setupTestDB(t),
		Remote:   h.remote,
		Prober:   &tu.StubProber{Reachable: map[string]bool{}},
		Notifier: h.notifier,
		Now:      func() time.Time { return fixedNow },
	})
	return h
}

// run executes the CLI with args and returns what it printed.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.output.Reset()
	err := newApp(h.runner).Run(context.Background(), append([]string{"ytpub"}, args...))
	return h.output.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("%s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// importAssets writes an import file with one asset per title and imports it.
func (h *harness) importAssets(t *testing.T, titles ...string) []*models.Asset {
	t.Helper()

	var doc strings.Builder
	for _, title := range titles {
		track := filepath.Join(h.dir, title+".mp4")
		tu.MustWriteFile(t, track, "video")
		doc.WriteString("[[asset]]\n")
		doc.WriteString("title = \"" + title + "\"\n")
		doc.WriteString("series = \"GopherCon\"\n")
		doc.WriteString("track = \"" + title + ".mp4\"\n")
		doc.WriteString("labels = [\"PUCHYOUTUBE\", \"PUDEAUTO\"]\n\n")
	}
	path := filepath.Join(h.dir, "assets.toml")
	tu.MustWriteFile(t, path, doc.String())

	h.mustRun(t, "asset", "import", path)

	assets, err := h.runner.assets.List(nil)
	if err != nil {
		t.Fatalf("failed to list assets: %v", err)
	}
	return assets
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			remote := tu.NewFakeRemote()
			db := setupTestDB(t)

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Remote: remote,
				DB:     db,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.remote != remote {
				t.Error("expected remote to be set")
			}
			if runner.db != db || runner.assets == nil || runner.labels == nil || runner.records == nil {
				t.Error("expected database and repositories to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.metrics == nil {
				t.Error("expected metrics to be set")
			}
			if runner.db != nil {
				t.Error("expected database to be opened lazily")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(map[string]any{"ch": make(chan int)}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("Hello %s", "World"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "Hello World" {
			t.Errorf("expected 'Hello World', got %q", output.String())
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		var names []string
		for _, c := range commands {
			names = append(names, c.Name)
		}
		if strings.Join(names, ",") != "setup,asset,publish,serve" {
			t.Errorf("unexpected commands %v", names)
		}
	})

	t.Run("before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			h := newHarness(t)
			tu.MustWriteFile(t, "custom.toml", "[database]\npath = \"custom.db\"\n")

			h.mustRun(t, "--config", "custom.toml", "--verbose", "asset", "list")
			if h.runner.config.Database.Path != "custom.db" {
				t.Errorf("expected config to be loaded, got %s", h.runner.config.Database.Path)
			}
			if h.runner.logger.GetLevel() != log.DebugLevel {
				t.Error("expected --verbose to enable debug logging")
			}
		})

		t.Run("rejects invalid config", func(t *testing.T) {
			h := newHarness(t)
			tu.MustWriteFile(t, "bad.toml", "[publication]\nplaylist_root = \"\"\n")

			_, err := h.run(t, "--config", "bad.toml", "asset", "list")
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		h := newHarness(t)

		out := h.mustRun(t, "setup", "config")
		if !strings.Contains(out, "config.toml") {
			t.Errorf("unexpected output %q", out)
		}
		tu.AssertFileExists(t, "config.toml")

		if _, err := h.run(t, "setup", "config"); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		h := newHarness(t)

		out := h.mustRun(t, "setup", "database")
		for _, w := range []string{"0001_create_catalog", "0002_create_publications", "Database ready"} {
			if !strings.Contains(out, w) {
				t.Errorf("expected %q in:\n%s", w, out)
			}
		}

		out = h.mustRun(t, "setup", "database", "--rollback")
		if !strings.Contains(out, "Rolled back 0002_create_publications") {
			t.Errorf("unexpected rollback output:\n%s", out)
		}
		if _, err := h.runner.db.Exec("SELECT 1 FROM publications"); err == nil {
			t.Error("expected publications table to be dropped")
		}
	})

	t.Run("labelTree", func(t *testing.T) {
		defs := labelTree(shared.DefaultConfig().Publication)

		var codes []string
		for _, s := range defs {
			codes = append(codes, s.code)
		}
		want := "ROOT,YOUTUBE,PUBCHANNELS,PUCHYOUTUBE,YOUTUBECONFERENCES,PUDEAUTO"
		if strings.Join(codes, ",") != want {
			t.Errorf("expected %s, got %s", want, strings.Join(codes, ","))
		}
	})

	t.Run("labels", func(t *testing.T) {
		h := newHarness(t)

		out := h.mustRun(t, "setup", "labels")
		if strings.Count(out, "+") != 6 {
			t.Errorf("expected 6 created labels, got:\n%s", out)
		}

		conf, err := h.runner.labels.GetByCode("YOUTUBECONFERENCES")
		if err != nil {
			t.Fatalf("expected default playlist label: %v", err)
		}
		if !conf.IsDescendantOf("YOUTUBE") {
			t.Errorf("expected default playlist under the playlist root, path %s", conf.Path())
		}

		out = h.mustRun(t, "setup", "labels")
		if strings.Contains(out, "+") {
			t.Errorf("expected second run to create nothing, got:\n%s", out)
		}

		conf.SetTitle("Renamed")
		if err := h.runner.labels.Update(conf); err != nil {
			t.Fatalf("failed to rename label: %v", err)
		}
		h.mustRun(t, "setup", "labels", "--force")
		conf, _ = h.runner.labels.GetByCode("YOUTUBECONFERENCES")
		if conf.Title() != "Conferences" {
			t.Errorf("expected --force to restore title, got %s", conf.Title())
		}
	})
}

func TestAssets(t *testing.T) {
	t.Run("import", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")

		tu.MustWriteFile(t, filepath.Join(h.dir, "talk.mp4"), "video")
		tu.MustWriteFile(t, filepath.Join(h.dir, "catalog.toml"), `
[[label]]
code = "YOUTUBEKEYNOTES"
title = "Keynotes"
parent = "YOUTUBE"

[[asset]]
title = "Opening keynote"
description = "Welcome"
keywords = "go, keynote"
track = "talk.mp4"
labels = ["PUCHYOUTUBE", "PUDEAUTO", "YOUTUBEKEYNOTES"]
bogus = true

[asset.properties]
speaker = "Gopher"
`)

		out := h.mustRun(t, "asset", "import", filepath.Join(h.dir, "catalog.toml"))
		if !strings.Contains(out, "Imported 1 label(s) and 1 asset(s)") {
			t.Errorf("unexpected output:\n%s", out)
		}

		assets, err := h.runner.assets.List(map[string]any{"labels": []string{"YOUTUBEKEYNOTES"}})
		if err != nil || len(assets) != 1 {
			t.Fatalf("expected 1 imported asset, got %d (%v)", len(assets), err)
		}
		a := assets[0]
		if a.TrackPath() != filepath.Join(h.dir, "talk.mp4") {
			t.Errorf("expected track resolved against the import file, got %s", a.TrackPath())
		}
		if v, _ := a.Property("speaker"); v != "Gopher" {
			t.Errorf("expected property to be imported, got %q", v)
		}
		if len(a.Labels()) != 3 {
			t.Errorf("expected 3 labels, got %d", len(a.Labels()))
		}
	})

	t.Run("import unknown label", func(t *testing.T) {
		h := newHarness(t)
		tu.MustWriteFile(t, "catalog.toml", "[[asset]]\ntitle = \"Talk\"\nlabels = [\"NOPE\"]\n")

		_, err := h.run(t, "asset", "import", "catalog.toml")
		if !errors.Is(err, shared.ErrLabelNotFound) {
			t.Errorf("expected ErrLabelNotFound, got %v", err)
		}
	})

	t.Run("import without path", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run(t, "asset", "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		h.importAssets(t, "Keynote", "Workshop")

		out := h.mustRun(t, "asset", "list")
		if !strings.Contains(out, "Keynote") || !strings.Contains(out, "unpublished") {
			t.Errorf("unexpected list output:\n%s", out)
		}

		out = h.mustRun(t, "asset", "list", "--json")
		if !strings.Contains(out, `"title": "Workshop"`) || !strings.Contains(out, `"PUDEAUTO"`) {
			t.Errorf("unexpected JSON output:\n%s", out)
		}
	})
}

func TestPublish(t *testing.T) {
	t.Run("full workflow", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		assets := h.importAssets(t, "Keynote")
		asset := assets[0]

		out := h.mustRun(t, "publish", "upload")
		if !strings.Contains(out, "1 succeeded, 0 failed") {
			t.Errorf("unexpected upload output:\n%s", out)
		}
		if h.remote.Count(tu.OpUpload) != 1 {
			t.Fatalf("expected 1 upload, got %d", h.remote.Count(tu.OpUpload))
		}
		if h.notifier.Count(notify.CauseUpload) != 1 {
			t.Error("expected an upload summary notification")
		}

		record, err := h.runner.records.GetByAssetID(asset.ID())
		if err != nil {
			t.Fatalf("expected a record: %v", err)
		}
		if record.Status() != models.StatusProcessing {
			t.Errorf("expected processing, got %s", record.Status())
		}

		h.remote.SetStatus(record.VideoID(), services.UploadProcessed, "")
		h.mustRun(t, "publish", "status")
		record, _ = h.runner.records.GetByAssetID(asset.ID())
		if record.Status() != models.StatusPublished {
			t.Errorf("expected published, got %s", record.Status())
		}
		if h.notifier.Count(notify.CauseFinished) != 1 {
			t.Error("expected a finished publication notification")
		}

		h.mustRun(t, "publish", "playlists")
		if len(h.remote.Playlists()) != 1 {
			t.Errorf("expected the default playlist to be created, got %v", h.remote.Playlists())
		}

		out = h.mustRun(t, "publish", "report", "--format", "csv")
		if !strings.Contains(out, "Keynote,"+record.VideoID()+",published") {
			t.Errorf("unexpected report:\n%s", out)
		}

		h.mustRun(t, "publish", "delete", "--asset", asset.ID())
		if h.remote.HasVideo(record.VideoID()) {
			t.Error("expected video to be deleted")
		}
		record, _ = h.runner.records.GetByAssetID(asset.ID())
		if record.Status() != models.StatusRemoved {
			t.Errorf("expected removed, got %s", record.Status())
		}
	})

	t.Run("upload failure fails the command", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		h.importAssets(t, "Keynote")
		h.remote.Fail(tu.OpUpload, tu.Forbidden(tu.OpUpload))

		out, err := h.run(t, "publish", "upload")
		if err == nil || !strings.Contains(err.Error(), "1 of 1 asset(s) failed") {
			t.Errorf("expected failure summary error, got %v", err)
		}
		if !strings.Contains(out, "0 succeeded, 1 failed") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("recover", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		asset := h.importAssets(t, "Keynote")[0]

		link := "https://www.youtube.com/watch?v=vid-42"
		if err := h.runner.assets.SetProperty(asset.ID(), models.PropertyWatchURL, link); err != nil {
			t.Fatalf("failed to set property: %v", err)
		}
		h.remote.AddVideo("vid-42", services.UploadProcessed)

		out := h.mustRun(t, "publish", "recover", "--asset", asset.ID())
		if !strings.Contains(out, link) {
			t.Errorf("unexpected output:\n%s", out)
		}
		record, err := h.runner.records.GetByAssetID(asset.ID())
		if err != nil || record.VideoID() != "vid-42" {
			t.Errorf("expected recovered record for vid-42, got %v (%v)", record, err)
		}
	})

	t.Run("recover an already published asset", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		asset := h.importAssets(t, "Keynote")[0]
		h.mustRun(t, "publish", "upload")

		_, err := h.run(t, "publish", "recover", "--asset", asset.ID())
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("recover without link", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun(t, "setup", "labels")
		asset := h.importAssets(t, "Keynote")[0]

		_, err := h.run(t, "publish", "recover", "--asset", asset.ID())
		if !errors.Is(err, shared.ErrNoRecoverableReference) {
			t.Errorf("expected ErrNoRecoverableReference, got %v", err)
		}
		if h.remote.TotalCalls() != 0 {
			t.Error("expected no remote calls")
		}
	})

	t.Run("delete unknown asset", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run(t, "publish", "delete", "--asset", "missing")
		if !errors.Is(err, shared.ErrAssetNotFound) || !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected asset and record not found, got %v", err)
		}
	})

	t.Run("report", func(t *testing.T) {
		h := newHarness(t)

		out := h.mustRun(t, "publish", "report")
		if !strings.Contains(out, "Publications: 0") {
			t.Errorf("unexpected empty report:\n%s", out)
		}

		if _, err := h.run(t, "publish", "report", "--status", "bogus"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag for status, got %v", err)
		}
		if _, err := h.run(t, "publish", "report", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag for format, got %v", err)
		}

		out = h.mustRun(t, "publish", "report", "--format", "md", "--output", "out.md")
		if !strings.Contains(out, "out.md") {
			t.Errorf("unexpected output %q", out)
		}
		tu.AssertFileExists(t, "out.md")
	})
}
