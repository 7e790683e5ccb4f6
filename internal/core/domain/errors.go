package domain

import "errors"

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session is not active")
	ErrSessionFull        = errors.New("session is full")
	ErrNotSessionHost     = errors.New("only the host can modify this session")
	ErrViewerNotFound     = errors.New("viewer not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrAdapterUnavailable = errors.New("sports adapter unavailable")
)
