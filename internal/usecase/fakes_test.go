package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"mediaproc/internal/domain"
	"mediaproc/internal/ports"
)

type fakeAuth struct {
	mu           sync.Mutex
	token        string
	err          error
	tokenCalls   int
	signOutCalls int
}

func (f *fakeAuth) Token(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.token, f.err
}

func (f *fakeAuth) SignOut(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

func (f *fakeAuth) snapshotSignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// blockingAuth hands out a token only once release is closed, and gives up
// when the context is cancelled.
type blockingAuth struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingAuth() *blockingAuth {
	return &blockingAuth{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingAuth) Token(ctx context.Context) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return "tok-late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingAuth) SignOut(context.Context) error { return nil }

type fakeDialer struct {
	conn  *fakeConn
	err   error
	calls []ports.DialConfig
}

func (f *fakeDialer) Dial(_ context.Context, cfg ports.DialConfig) (ports.RealtimeConn, error) {
	f.calls = append(f.calls, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if f.conn == nil {
		return nil, errors.New("no connection configured")
	}
	return f.conn, nil
}

type dialerFunc func(context.Context, ports.DialConfig) (ports.RealtimeConn, error)

func (f dialerFunc) Dial(ctx context.Context, cfg ports.DialConfig) (ports.RealtimeConn, error) {
	return f(ctx, cfg)
}

type emitted struct {
	event   string
	payload any
}

type fakeConn struct {
	mu         sync.Mutex
	events     chan domain.ServerEvent
	emitErr    error
	emits      []emitted
	closeCalls int
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan domain.ServerEvent, 16)}
}

func (f *fakeConn) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeConn) Events() <-chan domain.ServerEvent { return f.events }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeConn) snapshotEmits() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.emits))
	copy(out, f.emits)
	return out
}

type fakeEventSink struct {
	mu sync.Mutex

	snapshots []domain.Snapshot
	failures  []domain.Failure
	signOuts  int
}

func (f *fakeEventSink) SessionChanged(snapshot domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeEventSink) SessionError(failure domain.Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure)
}

func (f *fakeEventSink) SignOutRequested() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
}

func (f *fakeEventSink) snapshotFailures() []domain.Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Failure, len(f.failures))
	copy(out, f.failures)
	return out
}

func (f *fakeEventSink) snapshotSignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

// fakeTimer records scheduled functions instead of running them.
type fakeTimer struct {
	mu      sync.Mutex
	delays  []time.Duration
	fns     []func()
	stopped int
}

func (f *fakeTimer) afterFunc(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopped++
		return true
	}
}

func (f *fakeTimer) scheduled() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.delays))
	copy(out, f.delays)
	return out
}

func (f *fakeTimer) fire(i int) {
	f.mu.Lock()
	fn := f.fns[i]
	f.mu.Unlock()
	fn()
}
