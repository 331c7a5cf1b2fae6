// Package archive keeps a SQLite history of settled transcript entries.
//
// The live transcript is replaced wholesale on every reload, so lines that
// scroll out of the producer's window would otherwise be lost. A Recorder is
// attached to the reload pipeline as a sink; it writes every collapsed entry
// except the last (still being typed) and flushes that last entry when the
// daemon stops. Rows are deduplicated per session, so repeated reloads of the
// same feed do not grow the table.
package archive
