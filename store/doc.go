// Package store persists sessions to single-file SQLite databases.
//
// The wire format is a stable four-table schema (metadata, state, trajectory,
// artifacts) at schema_version 1. Any implementation of the format, in any
// language, can open the file and reconstruct a semantically identical
// session; byte-for-byte file equality is not part of the contract.
//
// Save is atomic-on-success: data is written to a temp file in the target
// directory, fsynced and renamed over the destination, so a failed save never
// leaves a partial file visible. The database handle is held only for the
// duration of a Save or Load call.
package store
