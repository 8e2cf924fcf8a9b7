// Package notify delivers human readable summaries of publication outcomes.
//
// The engine sends one message per state transition that people care about (finished publication,
// removal, duplicate rejection). The batch driver sends one aggregate message per upload run.
// Delivery never decides the outcome of an operation: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// Cause names the event a message reports.
type Cause string

const (
	CauseFinished   Cause = "finished publication"
	CauseRemoved    Cause = "status removed"
	CauseDuplicated Cause = "duplicated"
	CauseUpload     Cause = "upload"
)

// Subject returns the message subject for the cause, e.g. "Finished publication of YouTube video(s)".
func (c Cause) Subject() string {
	s := string(c)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return "YouTube video(s)"
	}
	return string(unicode.ToUpper(r)) + s[size:] + " of YouTube video(s)"
}

// Entry describes one asset in a message.
type Entry struct {
	AssetID string `json:"asset_id"`
	Title   string `json:"title"`
	VideoID string `json:"video_id,omitempty"`
	Link    string `json:"link,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message is a single notification.
type Message struct {
	Cause   Cause     `json:"cause"`
	Subject string    `json:"subject"`
	Entries []Entry   `json:"entries"`
	Failed  []Entry   `json:"failed,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NewMessage builds a message for cause listing entries.
func NewMessage(cause Cause, entries ...Entry) Message {
	return Message{Cause: cause, Subject: cause.Subject(), Entries: entries, SentAt: time.Now()}
}

// Empty reports whether the message has nothing to say.
func (m Message) Empty() bool { return len(m.Entries) == 0 && len(m.Failed) == 0 }

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// LogNotifier writes messages to a [log.Logger].
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info(msg.Subject, "cause", string(msg.Cause), "entries", len(msg.Entries), "failed", len(msg.Failed))
	for _, e := range msg.Entries {
		n.logger.Info("  "+e.Title, "asset", e.AssetID, "video", e.VideoID, "status", e.Status)
	}
	for _, e := range msg.Failed {
		n.logger.Warn("  "+e.Title, "asset", e.AssetID, "error", e.Error)
	}
	return nil
}

// Multi sends every message to each notifier in order and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PlainText renders a message as a short plain text body.
func PlainText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Subject + "\n\n")
	for _, e := range msg.Entries {
		b.WriteString("- " + e.Title)
		if e.Link != "" {
			b.WriteString(" " + e.Link)
		}
		b.WriteString("\n")
	}
	for _, e := range msg.Failed {
		b.WriteString("- FAILED " + e.Title + ": " + e.Error + "\n")
	}
	return b.String()
}
