package shared

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// MaxTitleLength is the longest title sent to YouTube before truncation.
const MaxTitleLength = 55

const truncationSuffix = "(...)"

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	breakPattern   = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// TruncateTitle shortens title to at most [MaxTitleLength] bytes at a word boundary and marks the cut with "(...)".
func TruncateTitle(title string) string {
	if len(title) <= MaxTitleLength {
		return title
	}

	short := title
	for len(short) > MaxTitleLength {
		idx := strings.LastIndex(short, " ")
		if idx <= 0 {
			short = cutRunes(short, MaxTitleLength)
			break
		}
		short = strings.TrimRight(short[:idx], " ")
	}

	return short + truncationSuffix
}

// cutRunes trims s to at most n bytes without splitting a UTF-8 sequence.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := 0
	for i := range s {
		if i > n {
			break
		}
		end = i
	}
	return s[:end]
}

// BuildDescription composes the remote description for an asset.
//
// Line breaks written as <br> become newlines and every other tag is stripped.
func BuildDescription(series, title, subtitle, description, assetURL string) string {
	var b strings.Builder
	if series != "" {
		b.WriteString(series)
		b.WriteString(" - ")
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(subtitle)
	b.WriteString("\n")
	b.WriteString(breakPattern.ReplaceAllString(description, "\n"))
	if assetURL != "" {
		b.WriteString("\n Video available at: ")
		b.WriteString(assetURL)
	}
	return htmlTagPattern.ReplaceAllString(b.String(), "")
}

// BuildKeywords splits a comma separated keyword string, dropping digits and empty entries.
func BuildKeywords(keywords string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, keywords)

	var out []string
	for _, kw := range strings.Split(stripped, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// WatchLink returns the canonical watch URL of a video.
func WatchLink(watchURL, videoID string) string {
	return watchURL + "?v=" + url.QueryEscape(videoID)
}

// EmbedMarkup returns the iframe snippet used to embed a video.
func EmbedMarkup(embedURL, videoID string) string {
	return fmt.Sprintf(
		`<iframe width="853" height="480" src="%s/%s" frameborder="0" allowfullscreen></iframe>`,
		strings.TrimRight(embedURL, "/"), videoID,
	)
}

// VideoIDFromLink extracts the "v" query parameter of a watch URL.
func VideoIDFromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedReference, link, err)
	}

	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("%w: %q has no v parameter", ErrMalformedReference, link)
	}
	return id, nil
}
