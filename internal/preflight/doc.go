// Package preflight provides readiness checks for the paths and endpoints
// scriptview depends on.
//
// The CLI "scriptview status" command renders these results; the daemon logs
// them once at startup. None of them are fatal: a missing feed simply means
// mpv is not running yet.
package preflight
