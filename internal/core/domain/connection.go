package domain

import "strings"

// ConnectionID identifies one realtime connection. It is assigned by the
// transport at connect time and is never reused.
type ConnectionID string

type Topic string

const (
	TopicAll Topic = "all"

	sportTopicPrefix = "sport:"
	gameTopicPrefix  = "game:"
)

func SportTopic(sportID string) Topic {
	return Topic(sportTopicPrefix + sportID)
}

func GameTopic(gameID string) Topic {
	return Topic(gameTopicPrefix + gameID)
}

// Family returns the topic family: "all", "sport" or "game".
func (t Topic) Family() string {
	switch {
	case t == TopicAll:
		return string(TopicAll)
	case strings.HasPrefix(string(t), sportTopicPrefix):
		return "sport"
	case strings.HasPrefix(string(t), gameTopicPrefix):
		return "game"
	default:
		return "unknown"
	}
}

func (t Topic) String() string {
	return string(t)
}
