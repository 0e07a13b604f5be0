package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaproc/internal/domain"
	"mediaproc/internal/ports"
)

var (
	ErrMissingEndpoint  = domain.ErrMissingEndpoint
	ErrNoToken          = domain.ErrNoToken
	ErrNoConnection     = errors.New("no connection to the server")
	ErrAlreadyConnected = errors.New("session client already attempted a connection")
	ErrClosed           = errors.New("session client is closed")
	ErrJobActive        = errors.New("a job is already in progress")
	ErrResetRequired    = errors.New("reset the finished job before starting another")
)

// User-facing messages stored in the session state.
const (
	MessageNoToken      = "Could not obtain the authentication token"
	MessageConnection   = "Connection error with the server"
	MessageNoConnection = "No connection with the server"
	MessageStarting     = "Starting processing..."
	MessageAudioReady   = "Audio downloaded, starting transcription..."
	MessageJobFailed    = "The server could not process the request"
)

const defaultSignOutDelay = 2 * time.Second

// Config controls session client behavior.
type Config struct {
	Endpoint     string
	SignOutDelay time.Duration
	Logger       *slog.Logger
}

// SessionClient owns one real-time connection to the processing backend and
// the job lifecycle driven over it.
type SessionClient struct {
	auth   ports.Authenticator
	dialer ports.RealtimeDialer
	events ports.EventSink
	cfg    Config
	logger *slog.Logger

	newJobID  func() string
	afterFunc func(time.Duration, func()) (stop func() bool)

	mu            sync.Mutex
	attempted     bool
	closed        bool
	cancelConnect context.CancelFunc
	conn          ports.RealtimeConn
	snapshot      domain.Snapshot
	stopSignOut   func() bool

	closeOnce  sync.Once
	eventsDone chan struct{}
}

func NewSessionClient(
	auth ports.Authenticator,
	dialer ports.RealtimeDialer,
	events ports.EventSink,
	cfg Config,
) (*SessionClient, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.SignOutDelay <= 0 {
		cfg.SignOutDelay = defaultSignOutDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionClient{
		auth:     auth,
		dialer:   dialer,
		events:   events,
		cfg:      cfg,
		logger:   logger.With("component", "session_client"),
		newJobID: func() string { return uuid.NewString() },
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		snapshot: domain.Snapshot{
			Connection: domain.ConnectionDisconnected,
			Phase:      domain.Idle{},
		},
		eventsDone: make(chan struct{}),
	}, nil
}

// Connect obtains a fresh token and opens the connection. It is attempted
// at most once per client; there is no automatic reconnection. Close cancels
// a Connect that is still fetching the token or dialing.
func (c *SessionClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.attempted {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.attempted = true
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelConnect = cancel
	c.mu.Unlock()

	token, err := c.auth.Token(ctx)
	if err == nil && strings.TrimSpace(token) == "" {
		err = ErrNoToken
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.failLocked(domain.Failure{Code: domain.ErrorCodeAuth, Message: MessageNoToken})
		c.mu.Unlock()
		c.logger.Warn("token unavailable, not connecting", "error", err)
		return fmt.Errorf("obtain token: %w", err)
	}
	c.snapshot.Connection = domain.ConnectionConnecting
	c.publishLocked()
	c.logger.Info("connecting", "endpoint", c.cfg.Endpoint)
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, ports.DialConfig{Endpoint: c.cfg.Endpoint, Token: token})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.snapshot.Connection = domain.ConnectionError
		c.failLocked(domain.Failure{Code: domain.ErrorCodeTransport, Message: MessageConnection})
		c.mu.Unlock()
		c.logger.Error("connection failed", "error", err)
		return fmt.Errorf("dial backend: %w", err)
	}
	c.conn = conn
	c.cancelConnect = nil
	c.mu.Unlock()

	go c.consumeEvents(conn)
	return nil
}

// StartJob validates the request and emits start_processing over the live
// connection. Nothing is queued when there is no connection. A new job needs
// an idle session: a finished or failed one must be Reset first.
func (c *SessionClient) StartJob(req domain.JobRequest) error {
	req, err := req.Normalize()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	switch c.snapshot.Phase.(type) {
	case domain.Active:
		return ErrJobActive
	case domain.Done, domain.Failed:
		return ErrResetRequired
	}
	if c.conn == nil || c.snapshot.Connection != domain.ConnectionConnected {
		c.failLocked(domain.Failure{Code: domain.ErrorCodeNoConnection, Message: MessageNoConnection})
		return ErrNoConnection
	}

	jobID := c.newJobID()
	c.snapshot.Phase = domain.Active{
		JobID:    jobID,
		Job:      req,
		Progress: domain.Progress{Percent: 0, Message: MessageStarting},
	}

	if err := c.conn.Emit(domain.EventStartProcessing, req); err != nil {
		c.logger.Error("emit start_processing failed", "job_id", jobID, "error", err)
		c.failLocked(domain.Failure{Code: domain.ErrorCodeTransport, Message: MessageConnection})
		return fmt.Errorf("emit %s: %w", domain.EventStartProcessing, err)
	}

	c.logger.Info("job started", "job_id", jobID, "kind", req.Kind, "reference", req.Reference())
	c.publishLocked()
	return nil
}

// Reset returns the job lifecycle to idle without touching the connection
// or notifying the server.
func (c *SessionClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.snapshot.Phase = domain.Idle{}
	c.publishLocked()
}

// Snapshot returns the current client state.
func (c *SessionClient) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Close tears the connection down exactly once. No events are processed
// after Close begins. An in-flight Connect is cancelled, not waited for.
func (c *SessionClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.conn = nil
		if c.cancelConnect != nil {
			c.cancelConnect()
			c.cancelConnect = nil
		}
		if c.stopSignOut != nil {
			c.stopSignOut()
			c.stopSignOut = nil
		}
		c.snapshot.Connection = domain.ConnectionDisconnected
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
			<-c.eventsDone
		}
		c.logger.Info("session closed")
	})
	return err
}

// Logout closes the connection and signs the user out.
func (c *SessionClient) Logout(ctx context.Context) error {
	closeErr := c.Close()
	signOutErr := c.auth.SignOut(ctx)
	if signOutErr != nil {
		signOutErr = fmt.Errorf("sign out: %w", signOutErr)
	}
	return errors.Join(closeErr, signOutErr)
}

func (c *SessionClient) failLocked(failure domain.Failure) {
	failed := domain.Failed{Failure: failure}
	if active, ok := c.snapshot.Phase.(domain.Active); ok {
		job := active.Job
		failed.Job = &job
		failed.JobID = active.JobID
	}
	c.snapshot.Phase = failed
	c.publishLocked()
	c.events.SessionError(failure)
}

func (c *SessionClient) publishLocked() {
	c.events.SessionChanged(c.snapshot)
}

// scheduleSignOutLocked arms a single delayed sign-out so the user
// re-authenticates.
func (c *SessionClient) scheduleSignOutLocked() {
	if c.stopSignOut != nil {
		return
	}
	c.logger.Warn("server reported an authentication failure, signing out", "delay", c.cfg.SignOutDelay)
	c.stopSignOut = c.afterFunc(c.cfg.SignOutDelay, c.signOutNow)
}

func (c *SessionClient) signOutNow() {
	c.mu.Lock()
	c.stopSignOut = nil
	c.mu.Unlock()

	if err := c.Logout(context.Background()); err != nil {
		c.logger.Error("automatic sign out failed", "error", err)
	}
	c.events.SignOutRequested()
}
