package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ytpub/internal/tasks"
)

// Summary renders the outcome of a batch for the terminal.
func Summary(title string, result *tasks.BatchResult, err error) string {
	var b strings.Builder
	b.WriteString(Title(title))
	b.WriteString("\n")

	if result == nil {
		if err != nil {
			b.WriteString(Err(fmt.Sprintf("✗ %v", err)))
			b.WriteString("\n")
		} else {
			b.WriteString(Help("nothing to do"))
			b.WriteString("\n")
		}
		return b.String()
	}

	if result.Total() == 0 {
		b.WriteString(Help("no assets matched"))
		b.WriteString("\n")
	}

	for _, r := range result.Succeeded {
		line := fmt.Sprintf("%s %s (%s)", OK("✓"), r.Title, Status(r.Status))
		if r.Link != "" {
			line += " " + r.Link
		}
		if len(r.Touched) > 0 {
			line += fmt.Sprintf(" %d playlist(s)", len(r.Touched))
		}
		b.WriteString(line + "\n")
	}
	for _, f := range result.Failed {
		b.WriteString(fmt.Sprintf("%s %s [%s]: %v\n", Err("✗"), f.Title, f.Pass, f.Err))
	}

	counts := fmt.Sprintf("\n%d succeeded, %d failed", len(result.Succeeded), len(result.Failed))
	if len(result.Failed) > 0 {
		b.WriteString(Warn(counts))
	} else {
		b.WriteString(OK(counts))
	}
	b.WriteString("\n")

	if err != nil {
		b.WriteString(Err(fmt.Sprintf("stopped: %v", err)))
		b.WriteString("\n")
	}
	return b.String()
}

// ProgressLine renders a single progress update as a log line.
func ProgressLine(update tasks.ProgressUpdate) string {
	if update.Message == "" {
		return ""
	}
	switch update.Data.(type) {
	case tasks.Failure:
		return Err(update.Message)
	case tasks.Result:
		return OK(update.Message)
	default:
		return phaseLabel(update.Phase) + " " + update.Message
	}
}

func phaseLabel(p tasks.Phase) string {
	if p.String() == "" {
		return Help("[...]")
	}
	return Help("[" + p.String() + "]")
}
