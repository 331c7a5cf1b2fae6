// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It translates feed entries, store status and archive rows into
// transport-friendly DTOs so readers never depend on internal types.
//
// # Key Types
//
// TranscriptEntry: one collapsed subtitle line.
//
// TranscriptStatus: feed presence, companion script presence, version and the
// guidance message shown when there is nothing to display.
//
// DaemonStatus: aggregated runtime information.
//
// # Converters
//
// FromEntries, FromStoreStatus, FromArchiveRecords.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. Entry slices are never nil so clients always
// receive a JSON array.
package api
