// Package daemon coordinates the long-running scriptview process.
//
// It wires configuration, the transcript store, the feed watcher, the reload
// loop and the optional history archive into a single lifecycle with
// flock-based locking to prevent multiple instances. Readers reach the
// transcript through the HTTP API served here (status, transcript tail,
// clear, forced reload, history, a websocket stream and Prometheus metrics)
// or through the IPC server in package ipc.
//
// Keep orchestration logic here: reading, parsing and collapsing the feed
// belong to their own packages while the daemon focuses on startup, shutdown
// and high level coordination.
package daemon
