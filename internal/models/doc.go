// Package models defines the persistent entities of the publication engine.
//
//   - [Asset] : catalog media with properties and attached labels
//   - [Label] : hierarchical tag, optionally bound to a remote playlist
//   - [PublicationRecord] : remote video id, [Status] and playlist memberships of one asset
//
// All entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
