package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a batch pass.
//
// Used to send updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	SelectAssets Phase = iota
	Uploading
	Reconciling
	SyncingPlaylists
	UpdatingMetadata
	Notifying
)

func (p Phase) String() string {
	switch p {
	case SelectAssets:
		return "select_assets"
	case Uploading:
		return "upload"
	case Reconciling:
		return "reconcile"
	case SyncingPlaylists:
		return "sync_playlists"
	case UpdatingMetadata:
		return "update_metadata"
	case Notifying:
		return "notify"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func selectedUpdate(pass string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectAssets,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Selected %d asset(s) (%s)", count, pass),
	}
}

func assetStartedUpdate(phase Phase, step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s...", step, total, title),
	}
}

func assetDoneUpdate(phase Phase, step, total int, res Result) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Title, res.Status),
		Data:    res,
	}
}

func assetFailedUpdate(phase Phase, step, total int, f Failure) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, f.Title, f.Err),
		Data:    f,
	}
}

func notifyUpdate(subject string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Notifying,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sending notification: %s", subject),
	}
}
