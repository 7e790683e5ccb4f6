package signal

import (
	"testing"

	"sportshub/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage_Subscriptions(t *testing.T) {
	cases := []struct {
		raw       string
		subscribe bool
		topic     domain.Topic
	}{
		{raw: `{"event":"subscribe:all"}`, subscribe: true, topic: domain.TopicAll},
		{raw: `{"event":"unsubscribe:all","data":null}`, topic: domain.TopicAll},
		{raw: `{"event":"subscribe:sport","data":"soccer"}`, subscribe: true, topic: domain.SportTopic("soccer")},
		{raw: `{"event":"unsubscribe:sport","data":"soccer"}`, topic: domain.SportTopic("soccer")},
		{raw: `{"event":"subscribe:game","data":"g-1"}`, subscribe: true, topic: domain.GameTopic("g-1")},
		{raw: `{"event":"unsubscribe:game","data":"g-1"}`, topic: domain.GameTopic("g-1")},
	}

	for _, tc := range cases {
		msg, err := DecodeClientMessage([]byte(tc.raw))
		require.NoError(t, err, tc.raw)

		if tc.subscribe {
			sub, ok := msg.(SubscribeMessage)
			require.True(t, ok, tc.raw)
			assert.Equal(t, tc.topic, sub.Topic)
		} else {
			unsub, ok := msg.(UnsubscribeMessage)
			require.True(t, ok, tc.raw)
			assert.Equal(t, tc.topic, unsub.Topic)
		}
	}
}

func TestDecodeClientMessage_Signaling(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"event":"screen-share:join","data":{"sessionId":"s1","userId":"u1"}}`))
	require.NoError(t, err)
	assert.Equal(t, JoinMessage{SessionID: "s1", UserID: "u1"}, msg)

	msg, err = DecodeClientMessage([]byte(`{"event":"screen-share:leave","data":{"sessionId":"s1"}}`))
	require.NoError(t, err)
	assert.Equal(t, LeaveMessage{SessionID: "s1"}, msg)

	msg, err = DecodeClientMessage([]byte(`{"event":"screen-share:offer","data":{"sessionId":"s1","viewerId":"c2","offer":{"type":"offer","sdp":"v=0"}}}`))
	require.NoError(t, err)
	assert.Equal(t, OfferMessage{
		SessionID: "s1",
		ViewerID:  "c2",
		Offer:     webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	}, msg)
	assert.Equal(t, domain.EventOffer, msg.Event())

	msg, err = DecodeClientMessage([]byte(`{"event":"screen-share:answer","data":{"sessionId":"s1","hostId":"c1","answer":{"type":"answer","sdp":"v=0"}}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionID("c1"), msg.(AnswerMessage).HostID)

	msg, err = DecodeClientMessage([]byte(`{"event":"screen-share:ice-candidate","data":{"sessionId":"s1","targetId":"c1","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMLineIndex":0}}}`))
	require.NoError(t, err)
	candidate := msg.(ICECandidateMessage).Candidate
	require.NotNil(t, candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *candidate.SDPMLineIndex)
}

func TestDecodeClientMessage_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":             `hello`,
		"missing event":        `{"data":"x"}`,
		"unknown event":        `{"event":"subscribe:everything"}`,
		"sport not a string":   `{"event":"subscribe:sport","data":{"id":"soccer"}}`,
		"empty game id":        `{"event":"subscribe:game","data":""}`,
		"bad id characters":    `{"event":"subscribe:game","data":"g 1"}`,
		"join without data":    `{"event":"screen-share:join"}`,
		"join without id":      `{"event":"screen-share:join","data":{}}`,
		"offer without target": `{"event":"screen-share:offer","data":{"sessionId":"s1","offer":{"type":"offer","sdp":"v=0"}}}`,
		"answer typed offer":   `{"event":"screen-share:answer","data":{"sessionId":"s1","hostId":"c1","answer":{"type":"offer","sdp":"v=0"}}}`,
		"offer without sdp":    `{"event":"screen-share:offer","data":{"sessionId":"s1","viewerId":"c2","offer":{"type":"offer","sdp":""}}}`,
		"candidate no target":  `{"event":"screen-share:ice-candidate","data":{"sessionId":"s1","candidate":{"candidate":""}}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(raw))
			assert.Error(t, err)
		})
	}

	_, err := DecodeClientMessage([]byte(`{"event":"subscribe:everything"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
