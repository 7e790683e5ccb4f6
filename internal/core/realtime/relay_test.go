package realtime

import (
	"context"
	"testing"

	"sportshub/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRelay(t *testing.T) (*Relay, *fakeTransport) {
	transport := newFakeTransport()
	return NewRelay(transport, zaptest.NewLogger(t).Sugar()), transport
}

var testOffer = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}

func TestRelay_JoinNotifiesOthersOnly(t *testing.T) {
	r, transport := newTestRelay(t)

	assert.True(t, r.Join("host", "s1", "u-host"))
	assert.Empty(t, transport.received("host"))

	assert.True(t, r.Join("viewer", "s1", "u-viewer"))
	assert.Empty(t, transport.received("viewer"))
	assert.Equal(t, []sent{{
		Event: domain.EventViewerJoined,
		Data:  domain.ViewerJoined{SessionID: "s1", ViewerID: "viewer", UserID: "u-viewer"},
	}}, transport.received("host"))
	assert.Equal(t, 2, r.RoomSize("s1"))
}

func TestRelay_DuplicateJoinIsNoop(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("viewer", "s1", "")

	assert.False(t, r.Join("viewer", "s1", ""))
	assert.Len(t, transport.received("host"), 1)
	assert.Equal(t, 2, r.RoomSize("s1"))
}

func TestRelay_JoinNewRoomLeavesPrevious(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("a-host", "A", "")
	r.Join("b-host", "B", "")
	r.Join("c", "A", "")

	assert.True(t, r.Join("c", "B", ""))

	sessionID, ok := r.SessionOf("c")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("B"), sessionID)
	assert.False(t, r.Leave("c", "A"))
	assert.Equal(t, 1, r.RoomSize("A"))
	assert.Equal(t, 2, r.RoomSize("B"))

	assert.Equal(t, []string{domain.EventViewerJoined, domain.EventViewerLeft}, transport.events("a-host"))
	assert.Equal(t, []string{domain.EventViewerJoined}, transport.events("b-host"))
}

func TestRelay_LeaveNotifiesRemaining(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("viewer", "s1", "")

	assert.True(t, r.Leave("viewer", "s1"))

	received := transport.received("host")
	require.Len(t, received, 2)
	assert.Equal(t, sent{
		Event: domain.EventViewerLeft,
		Data:  domain.ViewerLeft{SessionID: "s1", ViewerID: "viewer"},
	}, received[1])
	_, joined := r.SessionOf("viewer")
	assert.False(t, joined)
}

func TestRelay_LeaveWhenNotMemberIsNoop(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")

	assert.False(t, r.Leave("stranger", "s1"))
	assert.False(t, r.Leave("host", "s2"))
	assert.Empty(t, transport.received("host"))
	assert.Equal(t, 1, r.RoomSize("s1"))
}

func TestRelay_LastMemberLeavingRemovesRoom(t *testing.T) {
	r, _ := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Leave("host", "s1")

	assert.Equal(t, 0, r.RoomCount())
}

func TestRelay_DisconnectWithoutSession(t *testing.T) {
	r, _ := newTestRelay(t)

	sessionID, left := r.Disconnect("nobody")
	assert.False(t, left)
	assert.Empty(t, sessionID)
}

func TestRelay_OfferReachesTargetOnly(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("v1", "s1", "")
	r.Join("v2", "s1", "")

	assert.True(t, r.RelayOffer("host", "s1", "v1", testOffer))

	assert.Equal(t, sent{
		Event: domain.EventOffer,
		Data:  domain.RelayedOffer{SessionID: "s1", HostID: "host", Offer: testOffer},
	}, transport.received("v1")[1])
	assert.NotContains(t, transport.events("v2"), domain.EventOffer)
	assert.NotContains(t, transport.events("host"), domain.EventOffer)
}

func TestRelay_AnswerAndCandidateTaggedWithSender(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("viewer", "s1", "")

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
	mid := "0"
	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid}

	assert.True(t, r.RelayAnswer("viewer", "s1", "host", answer))
	assert.True(t, r.RelayICECandidate("viewer", "s1", "host", candidate))

	received := transport.received("host")
	require.Len(t, received, 3)
	assert.Equal(t, domain.RelayedAnswer{SessionID: "s1", ViewerID: "viewer", Answer: answer}, received[1].Data)
	assert.Equal(t, domain.RelayedICECandidate{SessionID: "s1", SenderID: "viewer", Candidate: candidate}, received[2].Data)
}

func TestRelay_DropsWhenTargetNotConnected(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	transport.drop("ghost")

	assert.False(t, r.RelayOffer("host", "s1", "ghost", testOffer))
	assert.Empty(t, transport.received("ghost"))
}

func TestRelay_DeliversToConnectedTargetOutsideRoom(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")

	// The viewer is connected but its join has not been handled yet.
	assert.True(t, r.RelayOffer("host", "s1", "viewer", testOffer))
	assert.Equal(t, []sent{{
		Event: domain.EventOffer,
		Data:  domain.RelayedOffer{SessionID: "s1", HostID: "host", Offer: testOffer},
	}}, transport.received("viewer"))

	r.Join("elsewhere", "s2", "")
	assert.True(t, r.RelayOffer("host", "s1", "elsewhere", testOffer))
	assert.Equal(t, []string{domain.EventOffer}, transport.events("elsewhere"))
}

func TestRelay_DropsWhenTransportFails(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("viewer", "s1", "")
	transport.fail("viewer")

	assert.False(t, r.RelayOffer("host", "s1", "viewer", testOffer))
}

func TestRelay_NotifyReachesWholeRoom(t *testing.T) {
	r, transport := newTestRelay(t)
	r.Join("host", "s1", "")
	r.Join("viewer", "s1", "")
	r.Join("outsider", "s2", "")

	delivered := r.Notify("s1", domain.EventSessionEnded, domain.SessionEnded{SessionID: "s1"})

	assert.Equal(t, 2, delivered)
	assert.Contains(t, transport.events("host"), domain.EventSessionEnded)
	assert.Contains(t, transport.events("viewer"), domain.EventSessionEnded)
	assert.NotContains(t, transport.events("outsider"), domain.EventSessionEnded)
	assert.Equal(t, 0, r.Notify("empty", domain.EventSessionEnded, nil))
}

func TestRelay_HostViewerScenario(t *testing.T) {
	r, transport := newTestRelay(t)

	r.Join("A", "s1", "")
	r.Join("B", "s1", "")
	assert.Equal(t, []sent{{
		Event: domain.EventViewerJoined,
		Data:  domain.ViewerJoined{SessionID: "s1", ViewerID: "B"},
	}}, transport.received("A"))

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "..."}
	r.RelayOffer("A", "s1", "B", offer)
	assert.Equal(t, []sent{{
		Event: domain.EventOffer,
		Data:  domain.RelayedOffer{SessionID: "s1", HostID: "A", Offer: offer},
	}}, transport.received("B"))

	sessionID, left := r.Disconnect("B")
	assert.True(t, left)
	assert.Equal(t, domain.SessionID("s1"), sessionID)
	assert.Equal(t, sent{
		Event: domain.EventViewerLeft,
		Data:  domain.ViewerLeft{SessionID: "s1", ViewerID: "B"},
	}, transport.received("A")[1])

	transport.drop("B")
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "..."}
	assert.False(t, r.RelayAnswer("A", "s1", "B", answer))
	assert.Len(t, transport.received("B"), 1)
}

func TestFanout_PublishesToAllThreeScopes(t *testing.T) {
	transport := newFakeTransport()
	logger := zaptest.NewLogger(t).Sugar()
	b := NewBroadcaster(transport, logger)
	r := NewRelay(transport, logger)
	fanout := NewFanout(b, r)

	b.Connect("sport-fan")
	b.Subscribe("sport-fan", domain.SportTopic("soccer"))
	r.Join("room-member", "s1", "")

	event := domain.GameUpdateEvent{Kind: domain.EventGameNew, GameID: "g", SportID: "soccer"}
	require.NoError(t, fanout.PublishGameUpdate(context.Background(), event))
	require.NoError(t, fanout.NotifySession(context.Background(), "s1", domain.EventSessionUpdated, map[string]string{"id": "s1"}))

	assert.Equal(t, []string{"game_new"}, transport.events("sport-fan"))
	assert.Equal(t, []string{domain.EventSessionUpdated}, transport.events("room-member"))
}
