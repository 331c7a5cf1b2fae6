// Package transcript turns feed snapshots into the de-duplicated transcript
// shown to readers and holds the current value behind a read/write mutex.
package transcript
