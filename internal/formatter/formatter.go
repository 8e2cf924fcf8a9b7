// package formatter renders notification bodies and exports publication reports to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/notify"
)

// Report formats accepted by [Render] and [WriteReport].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatJSON     = "json"
)

// NotificationText renders the body of a notification message.
//
// Upload summaries list every uploaded video and, when some failed, every failure with its error.
func NotificationText(msg notify.Message) string {
	var buf strings.Builder

	switch msg.Cause {
	case notify.CauseFinished:
		for _, e := range msg.Entries {
			fmt.Fprintf(&buf, "The video \"%s\" has been successfully published into YouTube.\n%s\n", e.Title, e.Link)
		}
	case notify.CauseRemoved:
		for _, e := range msg.Entries {
			fmt.Fprintf(&buf, "The following video has been removed from YouTube: \"%s\"\n%s\n", e.Title, e.Link)
		}
	case notify.CauseDuplicated:
		for _, e := range msg.Entries {
			fmt.Fprintf(&buf, "YouTube has rejected the upload of the video: \"%s\" because it has been published previously.\n%s\n", e.Title, e.Link)
		}
	case notify.CauseUpload:
		if len(msg.Entries) > 0 {
			buf.WriteString("The following videos were uploaded to YouTube:\n")
			for _, e := range msg.Entries {
				fmt.Fprintf(&buf, "- %s: %s %s\n", e.AssetID, e.Title, e.Link)
			}
		}
		if len(msg.Failed) > 0 {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString("The upload of the following videos has failed:\n")
			for _, e := range msg.Failed {
				fmt.Fprintf(&buf, "- %s: %s\nWith this error:\n%s\n", e.AssetID, e.Title, e.Error)
			}
		}
	default:
		return notify.PlainText(msg)
	}

	return buf.String()
}

// ReportRow is one publication in a [Report].
type ReportRow struct {
	AssetID   string        `json:"asset_id"`
	Title     string        `json:"title"`
	VideoID   string        `json:"video_id,omitempty"`
	Status    models.Status `json:"status"`
	Link      string        `json:"link,omitempty"`
	Playlists int           `json:"playlists"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCount is the number of publications in one status.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// Report summarizes the publication records of the catalog.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Counts      []StatusCount `json:"counts"`
	Rows        []ReportRow   `json:"rows"`
}

// NewReport builds a report from records. Titles are looked up by asset id and fall back to the id.
//
// Counts follow the order of [models.Statuses] and omit empty statuses.
func NewReport(records []*models.PublicationRecord, titles map[string]string, now time.Time) *Report {
	report := &Report{GeneratedAt: now, Rows: make([]ReportRow, 0, len(records))}

	counts := map[models.Status]int{}
	for _, r := range records {
		title, ok := titles[r.AssetID()]
		if !ok {
			title = r.AssetID()
		}
		report.Rows = append(report.Rows, ReportRow{
			AssetID:   r.AssetID(),
			Title:     title,
			VideoID:   r.VideoID(),
			Status:    r.Status(),
			Link:      r.Link(),
			Playlists: len(r.PlaylistIDs()),
			UpdatedAt: r.UpdatedAt(),
		})
		counts[r.Status()]++
	}

	for _, s := range models.Statuses {
		if counts[s] > 0 {
			report.Counts = append(report.Counts, StatusCount{Status: s, Count: counts[s]})
		}
	}
	return report
}

// Total returns the number of rows.
func (r *Report) Total() int { return len(r.Rows) }

// ExportToCSV converts a Report to CSV format with columns: Asset, Title, Video, Status, Link, Playlists, Updated
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Asset", "Title", "Video", "Status", "Link", "Playlists", "Updated"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range report.Rows {
		record := []string{
			row.AssetID,
			row.Title,
			row.VideoID,
			string(row.Status),
			row.Link,
			strconv.Itoa(row.Playlists),
			formatTime(row.UpdatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with a status summary and a table of publications
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Publication Report\n\n")
	buf.WriteString(fmt.Sprintf("**Generated**: %s\n", formatTime(report.GeneratedAt)))
	buf.WriteString(fmt.Sprintf("**Publications**: %d\n\n", report.Total()))

	if len(report.Counts) > 0 {
		buf.WriteString("## Status\n\n")
		for _, c := range report.Counts {
			buf.WriteString(fmt.Sprintf("- %s: %d\n", c.Status, c.Count))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Publications\n\n")
	buf.WriteString("| Title | Status | Video | Playlists |\n")
	buf.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range report.Rows {
		video := row.VideoID
		if row.Link != "" {
			video = fmt.Sprintf("[%s](%s)", row.VideoID, row.Link)
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", escapeCell(row.Title), row.Status, video, row.Playlists))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Publications: %d\n", report.Total()))
	for _, c := range report.Counts {
		buf.WriteString(fmt.Sprintf("  %s: %d\n", c.Status, c.Count))
	}
	buf.WriteString("\n")

	for i, row := range report.Rows {
		buf.WriteString(fmt.Sprintf("%d. %s [%s]", i+1, row.Title, row.Status))
		if row.Link != "" {
			buf.WriteString(" " + row.Link)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a Report to indented JSON
func ExportToJSON(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Formats lists the accepted report formats.
func Formats() []string {
	return []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}
}

// Render exports report in format. "md" and "txt" are accepted as aliases.
func Render(report *Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown, "md":
		return ExportToMarkdown(report)
	case FormatText, "txt", "":
		return ExportToText(report)
	case FormatJSON:
		return ExportToJSON(report)
	default:
		return nil, fmt.Errorf("unsupported report format %q (expected one of %s)", format, strings.Join(Formats(), ", "))
	}
}

// WriteReport renders report in format and writes it to path.
//
// Defaults to publications.{ext} as the filename.
func WriteReport(report *Report, format, path string) (string, error) {
	data, err := Render(report, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "publications." + extension(format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return "csv"
	case FormatMarkdown, "md":
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// SortRows orders rows by status, then title.
func (r *Report) SortRows() {
	slices.SortStableFunc(r.Rows, func(a, b ReportRow) int {
		if a.Status != b.Status {
			return slices.Index(models.Statuses, a.Status) - slices.Index(models.Statuses, b.Status)
		}
		return strings.Compare(a.Title, b.Title)
	})
}
