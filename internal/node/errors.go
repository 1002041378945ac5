package node

import "errors"

var (
	ErrInvalidDestination  = errors.New("invalid destination address")
	ErrDataTooLarge        = errors.New("payload empty or exceeds maximum data size")
	ErrNotJoined           = errors.New("not joined to any network")
	ErrNetworkShuttingDown = errors.New("network shutting down")
	ErrTransportSendFailed = errors.New("transport send failed")
	ErrPeerRejected        = errors.New("peer rejected")
	ErrNoReplyExpected     = errors.New("message kind carries no reply")
)
