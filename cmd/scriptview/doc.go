// Command scriptview is the command-line client for the scriptview daemon.
//
// It starts and stops the daemon, prints the collapsed subtitle transcript,
// clears it, forces reloads, queries the history archive and collapses feed
// files offline.
package main
