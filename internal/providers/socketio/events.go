package socketio

import (
	"encoding/json"
	"fmt"
	"strings"

	"mediaproc/internal/domain"
)

type progressPayload struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// unreadableResultMessage ends a job whose result payload cannot be decoded.
const unreadableResultMessage = "The server sent a result that could not be read"

type ackPayload struct {
	Message string `json:"message"`
	SID     string `json:"sid"`
}

// translate maps a Socket.IO packet to a domain event. ok is false for
// packets that carry nothing the session client acts on. Terminal job events
// are always delivered; err then reports what could not be decoded.
func translate(p packet) (event domain.ServerEvent, ok bool, err error) {
	switch p.Type {
	case packetConnect:
		var ack ackPayload
		if len(p.Data) > 0 {
			_ = json.Unmarshal(p.Data, &ack)
		}
		return domain.ServerEvent{Name: domain.EventConnect, Message: ack.SID}, true, nil

	case packetConnectError:
		return domain.ServerEvent{Name: domain.EventConnectError, Message: connectErrorText(p.Data)}, true, nil

	case packetDisconnect:
		return domain.ServerEvent{Name: domain.EventDisconnect, Message: "io server disconnect"}, true, nil

	case packetEvent:
		name, args, err := eventArgs(p.Data)
		if err != nil {
			return domain.ServerEvent{}, false, err
		}
		return translateEvent(name, args)

	default:
		return domain.ServerEvent{}, false, nil
	}
}

func translateEvent(name string, args []json.RawMessage) (domain.ServerEvent, bool, error) {
	event := domain.ServerEvent{Name: domain.EventName(name)}
	first := firstArg(args)

	switch event.Name {
	case domain.EventProgress:
		var payload progressPayload
		if err := json.Unmarshal(first, &payload); err != nil {
			return domain.ServerEvent{}, false, fmt.Errorf("decode progress: %w", err)
		}
		event.Progress = domain.Progress{Percent: payload.Progress, Message: payload.Message}

	case domain.EventAudioReady:

	case domain.EventProcessingDone:
		if err := json.Unmarshal(first, &event.Result); err != nil {
			failed := domain.ServerEvent{Name: domain.EventProcessingError, Message: unreadableResultMessage}
			return failed, true, fmt.Errorf("decode result: %w", err)
		}

	case domain.EventProcessingError:
		event.Message = errorText(first)

	case domain.EventConnectAck:
		var ack ackPayload
		_ = json.Unmarshal(first, &ack)
		event.Message = ack.SID
	}

	return event, true, nil
}

func firstArg(args []json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage("null")
	}
	return args[0]
}

func connectErrorText(data json.RawMessage) string {
	return errorText(data)
}

// errorText extracts a readable message from an error payload. It looks at
// error, error_message and message in turn, and falls back to the raw JSON
// for shapes it does not know.
func errorText(data json.RawMessage) string {
	var text string
	if json.Unmarshal(data, &text) == nil {
		return strings.TrimSpace(text)
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return rawText(data)
	}
	for _, key := range []string{"error", "error_message", "message"} {
		if text := fieldText(fields[key]); text != "" {
			return text
		}
	}
	return ""
}

func fieldText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(data, &text) == nil {
		return strings.TrimSpace(text)
	}
	return rawText(data)
}

func rawText(data json.RawMessage) string {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return ""
	}
	return text
}
