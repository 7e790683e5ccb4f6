package realtime

import (
	"sync"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	relayKindOffer     = "offer"
	relayKindAnswer    = "answer"
	relayKindCandidate = "ice-candidate"
)

// Relay tracks screen-share signaling rooms and forwards handshake messages
// between their members. SDP and ICE payloads pass through untouched.
type Relay struct {
	transport ports.Transport
	metrics   Metrics
	logger    *zap.SugaredLogger

	mu    sync.RWMutex
	rooms map[domain.SessionID]map[domain.ConnectionID]struct{}
	// joined is the side-table of connection -> room. A connection is in at
	// most one room.
	joined map[domain.ConnectionID]domain.SessionID
}

func NewRelay(transport ports.Transport, logger *zap.SugaredLogger, opts ...Option) *Relay {
	o := buildOptions(opts)
	return &Relay{
		transport: transport,
		metrics:   o.metrics,
		logger:    logger,
		rooms:     make(map[domain.SessionID]map[domain.ConnectionID]struct{}),
		joined:    make(map[domain.ConnectionID]domain.SessionID),
	}
}

// Join puts the connection in the session room, leaving any previous room
// first, and tells the other members. Re-joining the current room is a
// no-op. It reports whether membership changed.
func (r *Relay) Join(conn domain.ConnectionID, sessionID domain.SessionID, userID domain.UserID) bool {
	r.mu.Lock()
	previous, wasJoined := r.joined[conn]
	if wasJoined && previous == sessionID {
		r.mu.Unlock()
		return false
	}

	var leftBehind []domain.ConnectionID
	if wasJoined {
		leftBehind = r.removeLocked(conn, previous)
	}

	members, ok := r.rooms[sessionID]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		r.rooms[sessionID] = members
	}
	others := snapshot(members)
	members[conn] = struct{}{}
	r.joined[conn] = sessionID
	roomCount := len(r.rooms)
	r.mu.Unlock()

	r.metrics.SetActiveRooms(roomCount)

	if wasJoined {
		r.sendAll(leftBehind, domain.NewOutboundMessage(domain.EventViewerLeft, domain.ViewerLeft{
			SessionID: previous,
			ViewerID:  conn,
		}))
	}
	r.sendAll(others, domain.NewOutboundMessage(domain.EventViewerJoined, domain.ViewerJoined{
		SessionID: sessionID,
		ViewerID:  conn,
		UserID:    userID,
	}))

	r.logger.Debugw("connection joined signaling room",
		"connection_id", conn,
		"session_id", sessionID,
		"members", len(others)+1,
	)
	return true
}

// Leave removes the connection from the session room and tells the
// remaining members. It is a no-op when the connection is not in that room.
func (r *Relay) Leave(conn domain.ConnectionID, sessionID domain.SessionID) bool {
	r.mu.Lock()
	current, ok := r.joined[conn]
	if !ok || current != sessionID {
		r.mu.Unlock()
		return false
	}
	remaining := r.removeLocked(conn, sessionID)
	roomCount := len(r.rooms)
	r.mu.Unlock()

	r.metrics.SetActiveRooms(roomCount)
	r.sendAll(remaining, domain.NewOutboundMessage(domain.EventViewerLeft, domain.ViewerLeft{
		SessionID: sessionID,
		ViewerID:  conn,
	}))
	return true
}

// Disconnect leaves whatever room the connection was in. It returns that
// session, if any.
func (r *Relay) Disconnect(conn domain.ConnectionID) (domain.SessionID, bool) {
	sessionID, ok := r.SessionOf(conn)
	if !ok {
		return "", false
	}
	return sessionID, r.Leave(conn, sessionID)
}

// removeLocked drops conn from the room and returns the members left.
// r.mu must be held.
func (r *Relay) removeLocked(conn domain.ConnectionID, sessionID domain.SessionID) []domain.ConnectionID {
	delete(r.joined, conn)
	members, ok := r.rooms[sessionID]
	if !ok {
		return nil
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(r.rooms, sessionID)
		return nil
	}
	return snapshot(members)
}

// RelayOffer forwards a host's offer to one viewer.
func (r *Relay) RelayOffer(from domain.ConnectionID, sessionID domain.SessionID, target domain.ConnectionID, offer webrtc.SessionDescription) bool {
	return r.forward(relayKindOffer, sessionID, target, domain.NewOutboundMessage(domain.EventOffer, domain.RelayedOffer{
		SessionID: sessionID,
		HostID:    from,
		Offer:     offer,
	}))
}

// RelayAnswer forwards a viewer's answer back to the offering connection.
func (r *Relay) RelayAnswer(from domain.ConnectionID, sessionID domain.SessionID, target domain.ConnectionID, answer webrtc.SessionDescription) bool {
	return r.forward(relayKindAnswer, sessionID, target, domain.NewOutboundMessage(domain.EventAnswer, domain.RelayedAnswer{
		SessionID: sessionID,
		ViewerID:  from,
		Answer:    answer,
	}))
}

func (r *Relay) RelayICECandidate(from domain.ConnectionID, sessionID domain.SessionID, target domain.ConnectionID, candidate webrtc.ICECandidateInit) bool {
	return r.forward(relayKindCandidate, sessionID, target, domain.NewOutboundMessage(domain.EventICECandidate, domain.RelayedICECandidate{
		SessionID: sessionID,
		SenderID:  from,
		Candidate: candidate,
	}))
}

// forward delivers msg to target if the transport still knows it. Room
// membership is not checked; stale or unknown targets are dropped without
// telling the sender.
func (r *Relay) forward(kind string, sessionID domain.SessionID, target domain.ConnectionID, msg *domain.OutboundMessage) bool {
	if err := r.transport.Send(target, msg); err != nil {
		r.metrics.RecordRelay(kind, false)
		r.logger.Debugw("dropping signaling message for unreachable target",
			"kind", kind,
			"session_id", sessionID,
			"target_id", target,
			"error", err,
		)
		return false
	}

	r.metrics.RecordRelay(kind, true)
	return true
}

// Notify sends a session lifecycle event to every member of the room and
// returns the number of successful sends.
func (r *Relay) Notify(sessionID domain.SessionID, event string, payload interface{}) int {
	r.mu.RLock()
	members := snapshot(r.rooms[sessionID])
	r.mu.RUnlock()

	return r.sendAll(members, domain.NewOutboundMessage(event, payload))
}

func (r *Relay) sendAll(recipients []domain.ConnectionID, msg *domain.OutboundMessage) int {
	delivered := 0
	for _, id := range recipients {
		if err := r.transport.Send(id, msg); err != nil {
			r.metrics.RecordDeliveryFailure(msg.Event)
			r.logger.Warnw("failed to deliver room event",
				"event", msg.Event,
				"connection_id", id,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Relay) SessionOf(conn domain.ConnectionID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.joined[conn]
	return sessionID, ok
}

func (r *Relay) RoomSize(sessionID domain.SessionID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[sessionID])
}

func (r *Relay) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func snapshot(set map[domain.ConnectionID]struct{}) []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
