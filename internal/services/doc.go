// Package services implements the remote side of publication.
//
// # Remote Client
//
// [RemoteClient] is the contract the engine uses to talk to the video platform: upload,
// playlist creation, playlist membership, deletion, metadata updates and status queries.
// [YouTubeService] implements it on the YouTube Data API v3.
//
// # Call Policy
//
// Every remote call runs through one loop:
//   - a token bucket spaces requests ([golang.org/x/time/rate])
//   - each attempt gets its own deadline (uploads use a longer one)
//   - transient failures are retried with exponential backoff and jitter ([retry.Do])
//
// # Errors
//
// Failures are reported as [*RemoteError]. [RemoteError.NotFound] checks the HTTP code and the
// structured reason first and only then falls back to [NotFoundSignature] in the detail text.
// Every [*RemoteError] matches [shared.ErrRemote] with errors.Is.
//
// # Page Probe
//
// [PageProber] fetches a public watch page. It is only used to rebuild publication records that
// were lost locally.
package services
