package exception

import "github.com/yanun0323/errors"

// Transport errors
var (
	ErrTransportClosed = errors.New("transport: connection closed")
	ErrTrust           = errors.New("transport: certificate rejected")
)
