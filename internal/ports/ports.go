package ports

import (
	"context"

	"mediaproc/internal/domain"
)

// Authenticator is the identity provider capability the session client needs.
type Authenticator interface {
	// Token returns a currently valid bearer token or fails.
	Token(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// DialConfig describes one connection attempt to the processing backend.
type DialConfig struct {
	Endpoint string
	Token    string
}

// RealtimeConn is a live bidirectional channel to the backend.
type RealtimeConn interface {
	Emit(event string, payload any) error
	// Events is closed once the connection is gone.
	Events() <-chan domain.ServerEvent
	Close() error
}

// RealtimeDialer opens connections to the processing backend.
type RealtimeDialer interface {
	Dial(ctx context.Context, cfg DialConfig) (RealtimeConn, error)
}

// ResultExporter saves a received result locally.
type ResultExporter interface {
	Export(result domain.Result, path string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink receives every client state change, in order. It is called with
// the client's state locked, so implementations must not call back into it.
type EventSink interface {
	SessionChanged(snapshot domain.Snapshot)
	SessionError(failure domain.Failure)
	SignOutRequested()
}
