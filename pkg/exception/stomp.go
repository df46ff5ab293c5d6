package exception

import "github.com/yanun0323/errors"

// STOMP errors
var (
	ErrDecode               = errors.New("stomp: malformed frame")
	ErrProtocol             = errors.New("stomp: unexpected frame")
	ErrTimeout              = errors.New("stomp: request timed out")
	ErrCorrelationCollision = errors.New("stomp: duplicate correlation id")
	ErrNotConnected         = errors.New("stomp: connection not open")
	ErrNotIdle              = errors.New("stomp: connect from non-idle state")
	ErrClosed               = errors.New("stomp: connection closed")
)
