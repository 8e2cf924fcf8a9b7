// Package ui renders batch outcomes for the terminal using bubbletea's Elm architecture.
//
// The [Monitor] runs a batch in the background and follows it:
//  1. A spinner and the current [tasks.Phase] with its step counters
//  2. A progress bar for the phase
//  3. A rolling log of the most recent updates, failures highlighted
//
// Progress updates flow through a channel from the batch, the same non-blocking channel the CLI uses
// when it prints updates line by line. Once the batch finishes the program exits and [Summary] renders the result.
//
// Keyboard bindings (d, q) are displayed via charmbracelet/bubbles/help.
package ui
