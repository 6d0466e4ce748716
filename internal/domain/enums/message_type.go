package enums

import "strings"

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
	MessageTypeSystem   MessageType = "system"
)

// ParseMessageType accepts the closed set of message types; an empty input
// defaults to text.
func ParseMessageType(raw string) (MessageType, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return MessageTypeText, true
	}
	switch MessageType(value) {
	case MessageTypeText, MessageTypeImage, MessageTypeLocation, MessageTypeSystem:
		return MessageType(value), true
	default:
		return "", false
	}
}
