// Package reload keeps the transcript in step with the feed.
//
// A Reloader runs one cycle: probe presence, read, parse, collapse and
// install the result in the transcript store. Read and parse failures are
// absorbed and only surface through the store's status, logs and metrics, so
// the last good transcript stays visible while the producer is mid-write or
// stopped. A Loop owns the Reloader and is the only goroutine that writes the
// transcript: it reloads at start, then drains every pending change signal
// and manual request into a single cycle, throttled by a rate limiter.
// Failed cycles are not retried immediately; the next signal (or poll tick)
// triggers the next attempt.
package reload
