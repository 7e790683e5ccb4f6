package realtime

import (
	"context"

	"sportshub/internal/core/domain"
)

// Fanout delivers game events and session notices to connections held by
// this process.
type Fanout struct {
	broadcaster *Broadcaster
	relay       *Relay
}

func NewFanout(broadcaster *Broadcaster, relay *Relay) *Fanout {
	return &Fanout{broadcaster: broadcaster, relay: relay}
}

// PublishGameUpdate sends the event to all, sport:<id> and game:<id>.
func (f *Fanout) PublishGameUpdate(ctx context.Context, event domain.GameUpdateEvent) error {
	f.broadcaster.Publish(string(event.Kind), event.Payload, event.Topics()...)
	return nil
}

func (f *Fanout) NotifySession(ctx context.Context, sessionID domain.SessionID, event string, payload interface{}) error {
	f.relay.Notify(sessionID, event, payload)
	return nil
}
