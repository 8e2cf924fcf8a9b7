package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Preconditions: the asset or record cannot be acted on as it stands
	ErrNoPlayableTrack        = fmt.Errorf("asset has no playable track")
	ErrTrackFileMissing       = fmt.Errorf("track file does not exist")
	ErrNoRecoverableReference = fmt.Errorf("asset has no recoverable video reference")
	ErrMalformedReference     = fmt.Errorf("malformed video reference")
	ErrNotPublished           = fmt.Errorf("publication is not published")

	// Transport and remote errors
	ErrRemote         = fmt.Errorf("remote call failed")
	ErrUploadRejected = fmt.Errorf("upload was not accepted")
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrNotifyFailed   = fmt.Errorf("notification delivery failed")

	// Consistency errors: stored references point at nothing
	ErrAssetNotFound  = fmt.Errorf("asset not found")
	ErrLabelNotFound  = fmt.Errorf("label not found")
	ErrRecordNotFound = fmt.Errorf("publication record not found")
	ErrLabelExists    = fmt.Errorf("label already exists")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// IsPrecondition reports whether err means the operation was refused before any remote call.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrNoPlayableTrack, ErrTrackFileMissing, ErrNoRecoverableReference, ErrMalformedReference, ErrNotPublished,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConsistency reports whether err comes from a dangling reference between stores.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrAssetNotFound) || errors.Is(err, ErrLabelNotFound) || errors.Is(err, ErrRecordNotFound)
}
