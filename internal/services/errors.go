package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/desertthunder/ytpub/internal/shared"
	"google.golang.org/api/googleapi"
)

// NotFoundSignature is the free-text marker the remote uses when a resource does not exist.
const NotFoundSignature = "was not found"

var notFoundReasons = []string{"videoNotFound", "playlistNotFound", "playlistItemNotFound", "notFound"}

// throttleReasons are 4xx reasons that signal throttling rather than a refusal.
var throttleReasons = []string{"rateLimitExceeded", "userRateLimitExceeded", "backendError"}

// RemoteError is the failure half of the remote result envelope.
type RemoteError struct {
	Op     string // remote operation, e.g. "videos.list"
	Code   int    // HTTP status, 0 when the call never got a response
	Reason string // structured reason reported by the remote
	Detail string // human readable detail
	Err    error  // underlying error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Code != 0 {
		fmt.Fprintf(&b, ": %d", e.Code)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " %s", e.Reason)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Unwrap exposes both [shared.ErrRemote] and the underlying error.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrRemote}
	}
	return []error{shared.ErrRemote, e.Err}
}

// NotFound reports whether the remote said the resource does not exist.
//
// The structured code and reason are checked first. The free-text signature is the fallback for
// responses that carry neither.
func (e *RemoteError) NotFound() bool {
	if e.Code == http.StatusNotFound || slices.Contains(notFoundReasons, e.Reason) {
		return true
	}
	return e.Code == 0 && e.Reason == "" && strings.Contains(e.Detail, NotFoundSignature)
}

// Transient reports whether retrying the same call may succeed.
// Responses that cannot be classified are treated as transient.
func (e *RemoteError) Transient() bool {
	if e.NotFound() {
		return false
	}
	switch {
	case e.Code == 0:
		return !errors.Is(e.Err, context.Canceled)
	case e.Code >= 500, e.Code == http.StatusTooManyRequests, e.Code == http.StatusRequestTimeout:
		return true
	case slices.Contains(throttleReasons, e.Reason):
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a remote not-found failure.
func IsNotFound(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.NotFound()
	}
	return err != nil && strings.Contains(err.Error(), NotFoundSignature)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient()
	}
	return !errors.Is(err, context.DeadlineExceeded)
}

// classify converts an SDK or transport error into a [*RemoteError].
func classify(op string, err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		out := &RemoteError{Op: op, Code: gerr.Code, Detail: gerr.Message, Err: err}
		if len(gerr.Errors) > 0 {
			out.Reason = gerr.Errors[0].Reason
			if out.Detail == "" {
				out.Detail = gerr.Errors[0].Message
			}
		}
		return out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Op: op, Detail: "call timed out", Err: fmt.Errorf("%w: %w", shared.ErrTimeout, err)}
	}

	return &RemoteError{Op: op, Detail: err.Error(), Err: err}
}
