package api

import "errors"

// ErrHistoryDisabled is returned by history queries when archive.enabled is false.
var ErrHistoryDisabled = errors.New("transcript history is disabled (set archive.enabled = true)")
