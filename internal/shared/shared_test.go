package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestTruncateTitle(t *testing.T) {
	tc := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "short title unchanged",
			title: "Opening keynote",
			want:  "Opening keynote",
		},
		{
			name:  "exactly at limit",
			title: strings.Repeat("a", MaxTitleLength),
			want:  strings.Repeat("a", MaxTitleLength),
		},
		{
			name:  "cut at word boundary",
			title: "Marine biology seminar on coastal ecosystems and the future of fisheries",
			want:  "Marine biology seminar on coastal ecosystems and the(...)",
		},
		{
			name:  "single long word",
			title: strings.Repeat("x", 70),
			want:  strings.Repeat("x", MaxTitleLength) + "(...)",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTitle(tt.title)
			if got != tt.want {
				t.Errorf("TruncateTitle() = %q, want %q", got, tt.want)
			}
			if len(strings.TrimSuffix(got, "(...)")) > MaxTitleLength {
				t.Errorf("truncated title too long: %d", len(got))
			}
		})
	}
}

func TestBuildDescription(t *testing.T) {
	got := BuildDescription("Series", "Title", "Sub", "First<br />Second <b>bold</b>", "https://media.example.org/video/1")
	want := "Series - Title\nSub\nFirst\nSecond bold\n Video available at: https://media.example.org/video/1"
	if got != want {
		t.Errorf("BuildDescription() = %q, want %q", got, want)
	}

	t.Run("without series or url", func(t *testing.T) {
		got := BuildDescription("", "Title", "", "", "")
		if got != "Title\n\n" {
			t.Errorf("BuildDescription() = %q", got)
		}
	})
}

func TestBuildKeywords(t *testing.T) {
	got := BuildKeywords("ocean, 2024 talks, ,marine 3")
	want := []string{"ocean", "talks", "marine"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildKeywords() = %v, want %v", got, want)
	}

	if got := BuildKeywords(""); len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestLinks(t *testing.T) {
	t.Run("WatchLink round trip", func(t *testing.T) {
		link := WatchLink("https://www.youtube.com/watch", "abc123")
		if link != "https://www.youtube.com/watch?v=abc123" {
			t.Errorf("unexpected link %s", link)
		}

		id, err := VideoIDFromLink(link)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "abc123" {
			t.Errorf("expected abc123, got %s", id)
		}
	})

	t.Run("EmbedMarkup", func(t *testing.T) {
		got := EmbedMarkup("https://www.youtube.com/embed/", "abc123")
		if !strings.Contains(got, `src="https://www.youtube.com/embed/abc123"`) {
			t.Errorf("unexpected embed %s", got)
		}
	})

	t.Run("VideoIDFromLink malformed", func(t *testing.T) {
		for _, link := range []string{"https://www.youtube.com/watch", "https://youtu.be/abc", "://bad"} {
			if _, err := VideoIDFromLink(link); !errors.Is(err, ErrMalformedReference) {
				t.Errorf("%q: expected ErrMalformedReference, got %v", link, err)
			}
		}
	})
}

func TestErrorClassification(t *testing.T) {
	if !IsPrecondition(fmt.Errorf("%w: asset 1", ErrNoRecoverableReference)) {
		t.Error("wrapped ErrNoRecoverableReference should be a precondition")
	}
	if IsPrecondition(ErrRemote) {
		t.Error("ErrRemote is not a precondition")
	}
	if !IsConsistency(fmt.Errorf("%w: CONF", ErrLabelNotFound)) {
		t.Error("wrapped ErrLabelNotFound should be a consistency error")
	}
}
