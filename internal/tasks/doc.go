// Package tasks reconciles local publication records with YouTube, with real-time progress reporting.
//
// # Core Operations
//
// [Engine] works on one asset or record at a time:
//
//  1. [Engine.Publish] : upload the playable track as a new video
//     - Creates the record (linked from the asset) before the upload
//     - Leaves the record processing, stores the watch link, attaches the published marker
//     - A failed upload leaves the record in error or http_error for a later run
//
//  2. [Engine.Reconcile] : poll the remote status and drive the status machine
//     - processed while processing: published, "finished publication" sent once
//     - rejected as duplicate: duplicated, "duplicated" sent once
//     - not found: removed, marker detached, "status removed" sent once
//
//  3. [Engine.SyncPlaylists] : converge playlist membership toward the labels under the playlist root
//     - Unbound labels get a playlist, bound with a compare-and-swap
//     - Every applied add or remove is committed on its own so a re-run converges
//
//  4. [Engine.Recover] : rebuild a lost record from the stored watch link
//
//  5. [Engine.UpdateMetadata] and [Engine.Delete]
//
// # Batches
//
// [Batch] selects candidate assets and runs the engine on each. A failing asset is recorded in
// the [BatchResult] and never stops the batch.
//
// # Progress Reporting
//
// # All batch passes use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for UI rendering.
// Updates use select with default to prevent blocking.
package tasks
