package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
	th "github.com/desertthunder/ytpub/internal/testing"
)

var generated = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testReport() *Report {
	published := models.RestorePublicationRecord(1, "asset-1", "vid-1", models.StatusPublished,
		"", "https://www.youtube.com/watch?v=vid-1", map[string]string{"PL-1": "item-1", "PL-2": "item-2"}, false, false)
	processing := models.RestorePublicationRecord(2, "asset-2", "vid-2", models.StatusProcessing,
		"", "https://www.youtube.com/watch?v=vid-2", nil, false, false)
	failed := models.RestorePublicationRecord(3, "asset-3", "", models.StatusError, "", "", nil, false, false)

	titles := map[string]string{"asset-1": "Opening | Keynote", "asset-2": "Workshop"}
	return NewReport([]*models.PublicationRecord{published, processing, failed}, titles, generated)
}

func TestNotificationText(t *testing.T) {
	entry := notify.Entry{AssetID: "asset-1", Title: "Keynote", VideoID: "vid-1", Link: "https://www.youtube.com/watch?v=vid-1"}

	tests := []struct {
		name string
		msg  notify.Message
		want []string
	}{
		{
			name: "finished",
			msg:  notify.NewMessage(notify.CauseFinished, entry),
			want: []string{`The video "Keynote" has been successfully published into YouTube.`, entry.Link},
		},
		{
			name: "removed",
			msg:  notify.NewMessage(notify.CauseRemoved, entry),
			want: []string{`The following video has been removed from YouTube: "Keynote"`, entry.Link},
		},
		{
			name: "duplicated",
			msg:  notify.NewMessage(notify.CauseDuplicated, entry),
			want: []string{`rejected the upload of the video: "Keynote" because it has been published previously`},
		},
		{
			name: "upload",
			msg:  notify.NewMessage(notify.CauseUpload, entry),
			want: []string{"The following videos were uploaded to YouTube:", "- asset-1: Keynote " + entry.Link},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NotificationText(tt.msg)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("expected %q in:\n%s", w, got)
				}
			}
		})
	}

	t.Run("upload with failures", func(t *testing.T) {
		msg := notify.NewMessage(notify.CauseUpload)
		msg.Failed = []notify.Entry{{AssetID: "asset-2", Title: "Workshop", Error: "403 forbidden"}}

		got := NotificationText(msg)
		if strings.Contains(got, "were uploaded") {
			t.Errorf("expected no uploaded section, got:\n%s", got)
		}
		for _, w := range []string{"The upload of the following videos has failed:", "- asset-2: Workshop", "With this error:\n403 forbidden"} {
			if !strings.Contains(got, w) {
				t.Errorf("expected %q in:\n%s", w, got)
			}
		}
	})

	t.Run("unknown cause falls back to plain text", func(t *testing.T) {
		msg := notify.NewMessage(notify.Cause("other"), entry)
		if got := NotificationText(msg); got != notify.PlainText(msg) {
			t.Errorf("expected plain text fallback, got:\n%s", got)
		}
	})
}

func TestNewReport(t *testing.T) {
	report := testReport()

	if report.Total() != 3 {
		t.Fatalf("expected 3 rows, got %d", report.Total())
	}
	if report.Rows[2].Title != "asset-3" {
		t.Errorf("expected title to fall back to the asset id, got %q", report.Rows[2].Title)
	}
	if report.Rows[0].Playlists != 2 {
		t.Errorf("expected 2 playlists, got %d", report.Rows[0].Playlists)
	}

	want := []StatusCount{
		{models.StatusProcessing, 1},
		{models.StatusPublished, 1},
		{models.StatusError, 1},
	}
	if len(report.Counts) != len(want) {
		t.Fatalf("expected %d counts, got %+v", len(want), report.Counts)
	}
	for _, w := range want {
		found := false
		for _, c := range report.Counts {
			if c == w {
				found = true
			}
		}
		if !found {
			t.Errorf("missing count %+v in %+v", w, report.Counts)
		}
	}

	t.Run("SortRows", func(t *testing.T) {
		r := testReport()
		r.SortRows()
		for i := 1; i < len(r.Rows); i++ {
			prev, cur := r.Rows[i-1], r.Rows[i]
			if indexOf(prev.Status) > indexOf(cur.Status) {
				t.Errorf("rows out of order: %s before %s", prev.Status, cur.Status)
			}
		}
	})
}

func indexOf(s models.Status) int {
	for i, v := range models.Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

func TestExporters(t *testing.T) {
	report := testReport()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(report)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Asset,Title,Video,Status,Link,Playlists,Updated\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "asset-1,Opening | Keynote,vid-1,published,https://www.youtube.com/watch?v=vid-1,2,") {
			t.Errorf("CSV missing published row, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 4 {
			t.Errorf("expected 4 lines, got %d", lines)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(report)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, w := range []string{
			"# Publication Report",
			"**Generated**: 2026-05-01T12:00:00Z",
			"**Publications**: 3",
			"- published: 1",
			`| Opening \| Keynote | published | [vid-1](https://www.youtube.com/watch?v=vid-1) | 2 |`,
			"| asset-3 | error |  | 0 |",
		} {
			if !strings.Contains(output, w) {
				t.Errorf("Markdown missing %q, got:\n%s", w, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(report)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Publications: 3") {
			t.Errorf("Text missing total, got: %s", output)
		}
		if !strings.Contains(output, "2. Workshop [processing] https://www.youtube.com/watch?v=vid-2") {
			t.Errorf("Text missing processing row, got: %s", output)
		}
		if !strings.Contains(output, "3. asset-3 [error]\n") {
			t.Errorf("Text missing error row, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(report)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded Report
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded.Rows) != 3 || decoded.Rows[0].VideoID != "vid-1" {
			t.Errorf("unexpected rows %+v", decoded.Rows)
		}
		if !decoded.GeneratedAt.Equal(generated) {
			t.Errorf("expected %v, got %v", generated, decoded.GeneratedAt)
		}
	})

	t.Run("empty report", func(t *testing.T) {
		empty := NewReport(nil, nil, generated)
		data, err := ExportToMarkdown(empty)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if strings.Contains(string(data), "## Status") {
			t.Errorf("expected no status section, got:\n%s", data)
		}
	})
}

func TestRender(t *testing.T) {
	report := testReport()

	for _, format := range []string{"csv", "markdown", "md", "text", "txt", "", "json", "CSV"} {
		t.Run("format "+format, func(t *testing.T) {
			data, err := Render(report, format)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if len(data) == 0 {
				t.Error("expected output")
			}
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Render(report, "xml")
		if err == nil || !strings.Contains(err.Error(), "unsupported report format") {
			t.Errorf("expected unsupported format error, got %v", err)
		}
	})
}

func TestWriteReport(t *testing.T) {
	report := testReport()

	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteReport(report, "md", "")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if path != "publications.md" {
			t.Errorf("expected publications.md, got %s", path)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "# Publication Report") {
			t.Errorf("unexpected content:\n%s", content)
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.csv")

		got, err := WriteReport(report, "csv", path)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "report.txt")
		if _, err := WriteReport(report, "text", path); err == nil {
			t.Error("expected write error")
		}
	})
}
