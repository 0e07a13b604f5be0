package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types, sent as the first byte of every frame.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	packetConnect      byte = '0'
	packetDisconnect   byte = '1'
	packetEvent        byte = '2'
	packetAck          byte = '3'
	packetConnectError byte = '4'
	packetBinaryEvent  byte = '5'
	packetBinaryAck    byte = '6'
)

const defaultNamespace = "/"

var errEmptyPacket = errors.New("empty packet")

type packet struct {
	Type      byte
	Namespace string
	// AckID is -1 when the packet carries no acknowledgement id.
	AckID int
	Data  json.RawMessage
}

type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func parseOpen(frame []byte) (openPayload, error) {
	if len(frame) == 0 {
		return openPayload{}, errEmptyPacket
	}
	if frame[0] != engineOpen {
		return openPayload{}, fmt.Errorf("expected engine.io open packet, got type %q", frame[0])
	}
	var open openPayload
	if err := json.Unmarshal(frame[1:], &open); err != nil {
		return openPayload{}, fmt.Errorf("invalid engine.io open payload: %w", err)
	}
	if open.SID == "" {
		return openPayload{}, errors.New("engine.io open payload has no sid")
	}
	return open, nil
}

// encodePacket renders p as a complete Engine.IO message frame.
func encodePacket(p packet) []byte {
	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(p.Type)
	if p.Namespace != "" && p.Namespace != defaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.AckID >= 0 {
		b.WriteString(strconv.Itoa(p.AckID))
	}
	b.Write(p.Data)
	return []byte(b.String())
}

// decodePacket parses the Socket.IO packet that follows an Engine.IO
// message type byte.
func decodePacket(payload []byte) (packet, error) {
	if len(payload) == 0 {
		return packet{}, errEmptyPacket
	}

	p := packet{Type: payload[0], Namespace: defaultNamespace, AckID: -1}
	switch p.Type {
	case packetConnect, packetDisconnect, packetEvent, packetAck, packetConnectError:
	case packetBinaryEvent, packetBinaryAck:
		return packet{}, fmt.Errorf("binary socket.io packets are not supported")
	default:
		return packet{}, fmt.Errorf("unknown socket.io packet type %q", p.Type)
	}

	rest := string(payload[1:])
	if strings.HasPrefix(rest, "/") {
		if idx := strings.IndexByte(rest, ','); idx >= 0 {
			p.Namespace = rest[:idx]
			rest = rest[idx+1:]
		} else {
			p.Namespace = rest
			rest = ""
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return packet{}, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID = id
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return packet{}, fmt.Errorf("invalid socket.io packet data")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

func connectPacket(namespace string, auth any) ([]byte, error) {
	p := packet{Type: packetConnect, Namespace: namespace, AckID: -1}
	if auth != nil {
		data, err := json.Marshal(auth)
		if err != nil {
			return nil, fmt.Errorf("encode connect auth: %w", err)
		}
		p.Data = data
	}
	return encodePacket(p), nil
}

func eventPacket(namespace string, name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", name, err)
	}
	return encodePacket(packet{Type: packetEvent, Namespace: namespace, AckID: -1, Data: data}), nil
}

func disconnectPacket(namespace string) []byte {
	return encodePacket(packet{Type: packetDisconnect, Namespace: namespace, AckID: -1})
}

// eventArgs splits an EVENT payload into its name and arguments.
func eventArgs(data json.RawMessage) (string, []json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("event payload is not an array: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, errors.New("event payload has no name")
	}
	var name string
	if err := json.Unmarshal(raw[0], &name); err != nil {
		return "", nil, fmt.Errorf("event name is not a string: %w", err)
	}
	return name, raw[1:], nil
}
