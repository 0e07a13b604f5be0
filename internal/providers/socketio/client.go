package socketio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mediaproc/internal/domain"
	"mediaproc/internal/ports"
)

var ErrClosed = errors.New("socket.io connection is closed")

const (
	defaultPath             = "/socket.io/"
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultPingTimeout      = 20 * time.Second
	writeTimeout            = 5 * time.Second
)

// Config controls the Socket.IO connection.
type Config struct {
	Path             string
	Namespace        string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dialer implements ports.RealtimeDialer over Engine.IO v4 websockets.
type Dialer struct {
	cfg    Config
	ws     *websocket.Dialer
	logger *slog.Logger
}

func NewDialer(cfg Config) *Dialer {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if !strings.HasPrefix(cfg.Namespace, "/") {
		cfg.Namespace = "/" + cfg.Namespace
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ws := *websocket.DefaultDialer
	ws.HandshakeTimeout = cfg.HandshakeTimeout
	return &Dialer{cfg: cfg, ws: &ws, logger: logger.With("component", "socketio")}
}

// Dial opens the websocket, completes the Engine.IO handshake and sends the
// Socket.IO CONNECT packet. The server's answer to CONNECT arrives later as
// a connect or connect_error event.
func (d *Dialer) Dial(ctx context.Context, cfg ports.DialConfig) (ports.RealtimeConn, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("bearer token is required")
	}

	wsURL, err := buildSocketURL(cfg.Endpoint, d.cfg.Path)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.Token)

	conn, _, err := d.ws.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to processing backend: %w", err)
	}

	open, err := d.handshake(conn, cfg.Token)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	d.logger.Debug("engine.io session opened", "sid", open.SID, "ping_interval_ms", open.PingInterval)

	pingInterval := time.Duration(open.PingInterval) * time.Millisecond
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pingTimeout := time.Duration(open.PingTimeout) * time.Millisecond
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	s := &session{
		conn:       conn,
		namespace:  d.cfg.Namespace,
		pingWindow: pingInterval + pingTimeout,
		logger:     d.logger,
		events:     make(chan domain.ServerEvent, 64),
		send:       make(chan []byte, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
	}()

	return s, nil
}

func (d *Dialer) handshake(conn *websocket.Conn, token string) (openPayload, error) {
	_ = conn.SetReadDeadline(time.Now().Add(d.cfg.HandshakeTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return openPayload{}, fmt.Errorf("failed to read engine.io open packet: %w", err)
	}
	open, err := parseOpen(frame)
	if err != nil {
		return openPayload{}, err
	}

	connect, err := connectPacket(d.cfg.Namespace, map[string]string{"token": token})
	if err != nil {
		return openPayload{}, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, connect); err != nil {
		return openPayload{}, fmt.Errorf("failed to send socket.io connect: %w", err)
	}
	return open, nil
}

type session struct {
	conn       *websocket.Conn
	namespace  string
	pingWindow time.Duration
	logger     *slog.Logger

	events chan domain.ServerEvent
	send   chan []byte
	stop   chan struct{}
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	stopOnce sync.Once
}

func (s *session) Emit(event string, payload any) error {
	frame, err := eventPacket(s.namespace, event, payload)
	if err != nil {
		return err
	}
	return s.enqueue(frame)
}

func (s *session) Events() <-chan domain.ServerEvent {
	return s.events
}

// Close sends a Socket.IO DISCONNECT, closes the websocket and waits for
// both loops to exit. It is safe to call more than once.
func (s *session) Close() error {
	s.shutdown()
	<-s.done
	return s.waitErr()
}

func (s *session) shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) enqueue(frame []byte) error {
	select {
	case <-s.stop:
		return ErrClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.stop:
		return ErrClosed
	}
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.setErr(fmt.Errorf("failed to write packet: %w", err))
				_ = s.conn.Close()
				return
			}
		case <-s.stop:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = s.conn.WriteMessage(websocket.TextMessage, disconnectPacket(s.namespace))
			_ = s.conn.Close()
			return
		}
	}
}

// flush writes frames that were queued before shutdown.
func (s *session) flush() {
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()
	defer s.shutdown()

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pingWindow))
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopping() {
				return
			}
			s.setErr(fmt.Errorf("failed to read packet: %w", err))
			s.emit(domain.ServerEvent{Name: domain.EventDisconnect, Message: "transport close"})
			return
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case enginePing:
			if err := s.enqueue([]byte{enginePong}); err != nil {
				return
			}
		case engineClose:
			s.emit(domain.ServerEvent{Name: domain.EventDisconnect, Message: "transport close"})
			return
		case engineMessage:
			if s.dispatch(frame[1:]) {
				return
			}
		case engineNoop:
		default:
			s.logger.Debug("ignoring engine.io packet", "type", string(frame[0]))
		}
	}
}

// dispatch decodes one Socket.IO packet and forwards it. It reports true
// once the server has disconnected the namespace.
func (s *session) dispatch(payload []byte) bool {
	p, err := decodePacket(payload)
	if err != nil {
		s.logger.Warn("dropping malformed packet", "error", err)
		return false
	}
	if p.Namespace != s.namespace {
		return false
	}

	event, ok, err := translate(p)
	if err != nil {
		s.logger.Warn("undecodable event payload", "event", event.Name, "delivered", ok, "error", err)
	}
	if ok {
		s.emit(event)
	}
	return p.Type == packetDisconnect
}

func (s *session) emit(event domain.ServerEvent) {
	select {
	case s.events <- event:
	case <-s.stop:
	}
}

func buildSocketURL(endpoint string, path string) (string, error) {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return "", errors.New("processing backend endpoint is empty")
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid processing backend URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported processing backend URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("processing backend URL has no host")
	}

	if path == "" {
		path = defaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(path, "/") + "/"

	query := u.Query()
	query.Set("EIO", "4")
	query.Set("transport", "websocket")
	u.RawQuery = query.Encode()
	return u.String(), nil
}
