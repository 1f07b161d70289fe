package delta

import "errors"

// ErrUnknownOp is returned by Replay for an event it cannot dispatch.
var ErrUnknownOp = errors.New("unknown editor operation")
