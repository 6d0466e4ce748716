package enums

// EventType tags transient realtime events. Events are never persisted;
// they exist only on the bus transport.
type EventType string

const (
	EventTypeNewMatch    EventType = "new_match"
	EventTypeNewMessage  EventType = "new_message"
	EventTypeReadReceipt EventType = "read_receipt"
	EventTypePresence    EventType = "presence"
	EventTypeTyping      EventType = "typing"
)
