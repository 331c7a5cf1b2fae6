// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response types. The
// response payloads are the api package DTOs so the CLI renders the same data
// whether it came over the socket or over HTTP.
package ipc
