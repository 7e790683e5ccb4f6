package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"sportshub/internal/core/domain"
	"sportshub/pkg/validation"

	"github.com/pion/webrtc/v3"
)

// Inbound event names.
const (
	EventSubscribeAll     = "subscribe:all"
	EventUnsubscribeAll   = "unsubscribe:all"
	EventSubscribeSport   = "subscribe:sport"
	EventUnsubscribeSport = "unsubscribe:sport"
	EventSubscribeGame    = "subscribe:game"
	EventUnsubscribeGame  = "unsubscribe:game"
	EventJoin             = "screen-share:join"
	EventLeave            = "screen-share:leave"
	EventOffer            = domain.EventOffer
	EventAnswer           = domain.EventAnswer
	EventICECandidate     = domain.EventICECandidate
)

// Transport-level outbound events.
const (
	EventConnected = "connected"
	EventError     = "error"
)

var ErrUnknownEvent = errors.New("unknown event")

type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ClientMessage is one validated inbound message. The concrete types below
// are the only implementations.
type ClientMessage interface {
	Event() string
}

type SubscribeMessage struct {
	event string
	Topic domain.Topic
}

func (m SubscribeMessage) Event() string { return m.event }

type UnsubscribeMessage struct {
	event string
	Topic domain.Topic
}

func (m UnsubscribeMessage) Event() string { return m.event }

type JoinMessage struct {
	SessionID domain.SessionID `json:"sessionId"`
	UserID    domain.UserID    `json:"userId,omitempty"`
}

func (JoinMessage) Event() string { return EventJoin }

type LeaveMessage struct {
	SessionID domain.SessionID `json:"sessionId"`
}

func (LeaveMessage) Event() string { return EventLeave }

type OfferMessage struct {
	SessionID domain.SessionID          `json:"sessionId"`
	ViewerID  domain.ConnectionID       `json:"viewerId"`
	Offer     webrtc.SessionDescription `json:"offer"`
}

func (OfferMessage) Event() string { return EventOffer }

type AnswerMessage struct {
	SessionID domain.SessionID          `json:"sessionId"`
	HostID    domain.ConnectionID       `json:"hostId"`
	Answer    webrtc.SessionDescription `json:"answer"`
}

func (AnswerMessage) Event() string { return EventAnswer }

type ICECandidateMessage struct {
	SessionID domain.SessionID        `json:"sessionId"`
	TargetID  domain.ConnectionID     `json:"targetId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (ICECandidateMessage) Event() string { return EventICECandidate }

// DecodeClientMessage parses a {"event", "data"} frame into its typed
// variant and validates it.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Event {
	case EventSubscribeAll:
		return SubscribeMessage{event: env.Event, Topic: domain.TopicAll}, nil
	case EventUnsubscribeAll:
		return UnsubscribeMessage{event: env.Event, Topic: domain.TopicAll}, nil

	case EventSubscribeSport, EventUnsubscribeSport:
		id, err := decodeID(env.Data, "sportId")
		if err != nil {
			return nil, err
		}
		if env.Event == EventSubscribeSport {
			return SubscribeMessage{event: env.Event, Topic: domain.SportTopic(id)}, nil
		}
		return UnsubscribeMessage{event: env.Event, Topic: domain.SportTopic(id)}, nil

	case EventSubscribeGame, EventUnsubscribeGame:
		id, err := decodeID(env.Data, "gameId")
		if err != nil {
			return nil, err
		}
		if env.Event == EventSubscribeGame {
			return SubscribeMessage{event: env.Event, Topic: domain.GameTopic(id)}, nil
		}
		return UnsubscribeMessage{event: env.Event, Topic: domain.GameTopic(id)}, nil

	case EventJoin:
		var msg JoinMessage
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		if err := validateSessionID(msg.SessionID); err != nil {
			return nil, err
		}
		return msg, nil

	case EventLeave:
		var msg LeaveMessage
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		if err := validateSessionID(msg.SessionID); err != nil {
			return nil, err
		}
		return msg, nil

	case EventOffer:
		var msg OfferMessage
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		if err := validateRouted(msg.SessionID, msg.ViewerID, "viewerId"); err != nil {
			return nil, err
		}
		if err := validateDescription(msg.Offer, webrtc.SDPTypeOffer); err != nil {
			return nil, err
		}
		return msg, nil

	case EventAnswer:
		var msg AnswerMessage
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		if err := validateRouted(msg.SessionID, msg.HostID, "hostId"); err != nil {
			return nil, err
		}
		if err := validateDescription(msg.Answer, webrtc.SDPTypeAnswer); err != nil {
			return nil, err
		}
		return msg, nil

	case EventICECandidate:
		var msg ICECandidateMessage
		if err := decodeData(env, &msg); err != nil {
			return nil, err
		}
		if err := validateRouted(msg.SessionID, msg.TargetID, "targetId"); err != nil {
			return nil, err
		}
		return msg, nil

	case "":
		return nil, errors.New("event is required")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeData(env inboundEnvelope, into interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: data is required", env.Event)
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return fmt.Errorf("%s: invalid data: %w", env.Event, err)
	}
	return nil
}

// decodeID reads a bare JSON string payload such as "soccer".
func decodeID(data json.RawMessage, field string) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	if err := validation.ValidateIdentifier(id, field); err != nil {
		return "", err
	}
	return id, nil
}

func validateSessionID(id domain.SessionID) error {
	return validation.ValidateIdentifier(string(id), "sessionId")
}

func validateRouted(sessionID domain.SessionID, target domain.ConnectionID, field string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	return validation.ValidateIdentifier(string(target), field)
}

func validateDescription(desc webrtc.SessionDescription, want webrtc.SDPType) error {
	if desc.Type != want {
		return fmt.Errorf("expected %s description, got %s", want, desc.Type)
	}
	if desc.SDP == "" {
		return errors.New("sdp is required")
	}
	return nil
}
