// Package daemonctl launches, stops and inspects the scriptview daemon on
// behalf of the CLI.
package daemonctl
