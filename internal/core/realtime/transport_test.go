package realtime

import (
	"errors"
	"sync"

	"sportshub/internal/core/domain"
)

var errBrokenPipe = errors.New("broken pipe")

type sent struct {
	Event string
	Data  interface{}
}

// fakeTransport records every message per connection. Connections listed in
// failing return an error instead; gone ones are unknown to it.
type fakeTransport struct {
	mu      sync.Mutex
	inbox   map[domain.ConnectionID][]sent
	failing map[domain.ConnectionID]bool
	gone    map[domain.ConnectionID]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:   make(map[domain.ConnectionID][]sent),
		failing: make(map[domain.ConnectionID]bool),
		gone:    make(map[domain.ConnectionID]bool),
	}
}

func (f *fakeTransport) Send(id domain.ConnectionID, msg *domain.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[id] {
		return domain.ErrConnectionNotFound
	}
	if f.failing[id] {
		return errBrokenPipe
	}
	f.inbox[id] = append(f.inbox[id], sent{Event: msg.Event, Data: msg.Data})
	return nil
}

func (f *fakeTransport) fail(id domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[id] = true
}

func (f *fakeTransport) drop(id domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone[id] = true
}

func (f *fakeTransport) received(id domain.ConnectionID) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sent, len(f.inbox[id]))
	copy(out, f.inbox[id])
	return out
}

func (f *fakeTransport) events(id domain.ConnectionID) []string {
	var out []string
	for _, m := range f.received(id) {
		out = append(out, m.Event)
	}
	return out
}
