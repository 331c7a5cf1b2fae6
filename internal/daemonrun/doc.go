// Package daemonrun hosts the scriptview daemon process: logging setup, log
// retention, the pid file, the history archive, the IPC socket and signal
// handling around daemon.Daemon.
package daemonrun
