// Package feed reads and validates the subtitle feed written by the mpv
// companion script.
//
// The feed is a single JSON document, rewritten wholesale by its producer,
// holding an array of entries with text, start_time, optional end_time and an
// opaque timestamp. Parse is pure and strict: a document is accepted whole or
// rejected with a *ParseError. Probe and Read touch the filesystem and classify
// failures as ErrResourceMissing or ErrResourceUnreadable so callers can
// report presence without caring about the underlying errno.
package feed
