package ports

import "sportshub/internal/core/domain"

// Transport delivers a message to a single connection. Implementations must
// not block; an error means this one delivery failed.
type Transport interface {
	Send(id domain.ConnectionID, msg *domain.OutboundMessage) error
}
