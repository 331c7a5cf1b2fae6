// Package logs reads the daemon's log file for `scriptview logs`: the last N
// lines, then optionally everything appended afterwards, following the
// scriptview.log link across daemon restarts.
package logs
