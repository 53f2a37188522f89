package voicegateway

import "errors"

// ErrInvalidPayloadOrder is returned when the server deviates from
// the documented handshake sequencing (spec.md §3, §7).
var ErrInvalidPayloadOrder = errors.New("voicegateway: invalid payload order")

// ErrHandshakeTimeout is returned when the Hello/Ready (or
// Hello/Resumed) race does not complete within its budget.
var ErrHandshakeTimeout = errors.New("voicegateway: handshake timed out")
