package domain

import "github.com/pion/webrtc/v3"

// Outbound event names.
const (
	EventViewerJoined   = "screen-share:viewer-joined"
	EventViewerLeft     = "screen-share:viewer-left"
	EventOffer          = "screen-share:offer"
	EventAnswer         = "screen-share:answer"
	EventICECandidate   = "screen-share:ice-candidate"
	EventSessionUpdated = "screen-share:session-updated"
	EventSessionEnded   = "screen-share:session-ended"
)

type ViewerJoined struct {
	SessionID SessionID    `json:"sessionId"`
	ViewerID  ConnectionID `json:"viewerId"`
	UserID    UserID       `json:"userId,omitempty"`
}

type ViewerLeft struct {
	SessionID SessionID    `json:"sessionId"`
	ViewerID  ConnectionID `json:"viewerId"`
}

type RelayedOffer struct {
	SessionID SessionID                 `json:"sessionId"`
	HostID    ConnectionID              `json:"hostId"`
	Offer     webrtc.SessionDescription `json:"offer"`
}

type RelayedAnswer struct {
	SessionID SessionID                 `json:"sessionId"`
	ViewerID  ConnectionID              `json:"viewerId"`
	Answer    webrtc.SessionDescription `json:"answer"`
}

type RelayedICECandidate struct {
	SessionID SessionID               `json:"sessionId"`
	SenderID  ConnectionID            `json:"senderId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type SessionEnded struct {
	SessionID SessionID `json:"sessionId"`
}
