package domain

// EventName is a server-to-client event, including the transport-level
// connect, disconnect and connect_error notifications.
type EventName string

const (
	EventConnect         EventName = "connect"
	EventConnectAck      EventName = "connect_ack"
	EventProgress        EventName = "progress"
	EventAudioReady      EventName = "audio_ready"
	EventProcessingDone  EventName = "processing_done"
	EventProcessingError EventName = "processing_error"
	EventDisconnect      EventName = "disconnect"
	EventConnectError    EventName = "connect_error"
)

// EventStartProcessing is the single client-to-server event.
const EventStartProcessing = "start_processing"

// ServerEvent is one decoded inbound event. Only the fields relevant to
// Name are populated; Message carries error text or a disconnect reason.
type ServerEvent struct {
	Name     EventName
	Progress Progress
	Result   Result
	Message  string
}
