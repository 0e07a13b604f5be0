package socketio

import (
	"strings"
	"testing"
)

func TestParseOpen(t *testing.T) {
	t.Parallel()

	open, err := parseOpen([]byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open.SID != "abc" || open.PingInterval != 25000 || open.PingTimeout != 20000 {
		t.Fatalf("unexpected open payload: %+v", open)
	}

	for _, frame := range []string{"", `40{"sid":"x"}`, `0{}`, `0not-json`} {
		if _, err := parseOpen([]byte(frame)); err == nil {
			t.Fatalf("expected error for %q", frame)
		}
	}
}

func TestEncodeConnectPacket(t *testing.T) {
	t.Parallel()

	frame, err := connectPacket("/", map[string]string{"token": "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != `40{"token":"t"}` {
		t.Fatalf("unexpected default namespace frame: %s", frame)
	}

	frame, err = connectPacket("/media", map[string]string{"token": "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != `40/media,{"token":"t"}` {
		t.Fatalf("unexpected named namespace frame: %s", frame)
	}
}

func TestEncodeEventPacket(t *testing.T) {
	t.Parallel()

	frame, err := eventPacket("/", "start_processing", map[string]string{"tipo_pauta": "tv", "id_pauta": "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != `42["start_processing",{"id_pauta":"42","tipo_pauta":"tv"}]` {
		t.Fatalf("unexpected frame: %s", frame)
	}

	frame, err = eventPacket("/", "ping_me", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != `42["ping_me"]` {
		t.Fatalf("unexpected frame without payload: %s", frame)
	}

	if got := string(disconnectPacket("/media")); got != "41/media," {
		t.Fatalf("unexpected disconnect frame: %s", got)
	}
}

func TestDecodePacket(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in        string
		typ       byte
		namespace string
		ackID     int
		data      string
	}{
		{`0{"sid":"s1"}`, packetConnect, "/", -1, `{"sid":"s1"}`},
		{`1`, packetDisconnect, "/", -1, ""},
		{`2["progress",{"progress":10}]`, packetEvent, "/", -1, `["progress",{"progress":10}]`},
		{`2/media,["x"]`, packetEvent, "/media", -1, `["x"]`},
		{`2/media,12["x"]`, packetEvent, "/media", 12, `["x"]`},
		{`1/media`, packetDisconnect, "/media", -1, ""},
		{`4{"message":"not authorized"}`, packetConnectError, "/", -1, `{"message":"not authorized"}`},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			p, err := decodePacket([]byte(tt.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Type != tt.typ || p.Namespace != tt.namespace || p.AckID != tt.ackID || string(p.Data) != tt.data {
				t.Fatalf("unexpected packet: type=%q ns=%q ack=%d data=%s", p.Type, p.Namespace, p.AckID, p.Data)
			}
		})
	}
}

func TestDecodePacketRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "9", `5-["bin"]`, `2{broken`} {
		if _, err := decodePacket([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestEventArgs(t *testing.T) {
	t.Parallel()

	name, args, err := eventArgs([]byte(`["progress",{"progress":5},"extra"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "progress" || len(args) != 2 {
		t.Fatalf("unexpected split: %s %d", name, len(args))
	}

	for _, in := range []string{`{}`, `[]`, `[1]`} {
		if _, _, err := eventArgs([]byte(in)); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}
}

func TestBuildSocketURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://localhost:5000":      "ws://localhost:5000/socket.io/?EIO=4&transport=websocket",
		"https://api.example.com/":   "wss://api.example.com/socket.io/?EIO=4&transport=websocket",
		"https://api.example.com/v1": "wss://api.example.com/v1/socket.io/?EIO=4&transport=websocket",
		" ws://10.0.0.2:8080 ":       "ws://10.0.0.2:8080/socket.io/?EIO=4&transport=websocket",
	}
	for in, want := range cases {
		got, err := buildSocketURL(in, "")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("buildSocketURL(%q) = %s, want %s", in, got, want)
		}
	}

	got, err := buildSocketURL("http://host", "/custom/path")
	if err != nil || !strings.HasPrefix(got, "ws://host/custom/path/?") {
		t.Fatalf("unexpected custom path url: %s (%v)", got, err)
	}

	for _, in := range []string{"", "ftp://host", "localhost:5000", "http://"} {
		if _, err := buildSocketURL(in, ""); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
