// Package repositories implements SQLite persistence for the publication engine.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Assets and labels support soft deletes via deleted_at timestamps and exclude deleted rows from queries by default.
//
// Key Implementations:
//   - [AssetRepository] : catalog assets with JSON properties and label membership
//   - [LabelRepository] : label tree with compare-and-swap playlist binding
//   - [PublicationRepository] : publication records, upserted on every state change
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
