package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"mediaproc/internal/bootstrap"
	"mediaproc/internal/domain"
	"mediaproc/internal/export"
)

// exportDefault is the --export value used when the flag has no argument.
const exportDefault = "auto"

var (
	errSignedOut      = errors.New("signed out after an authentication failure")
	errConnectionLost = errors.New("connection to the server was lost")
)

func runProcess(ctx context.Context, req domain.JobRequest, opts processOptions, stdout io.Writer, stderr io.Writer) error {
	sink := newProgressSink(stderr)
	services, err := bootstrap.BuildWithLogOutput(sink, stderr)
	if err != nil {
		return err
	}
	client := services.Client
	defer client.Close()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	snap, err := waitFor(ctx, client, sink, func(s domain.Snapshot) bool {
		return s.Connection != domain.ConnectionConnecting || s.Phase.Kind() == domain.PhaseFailed
	})
	if err != nil {
		return err
	}
	if failure := snap.Failure(); failure != nil {
		return failure
	}
	if snap.Connection != domain.ConnectionConnected {
		return errConnectionLost
	}

	if err := client.StartJob(req); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stderr, req.Title())

	snap, err = waitFor(ctx, client, sink, func(s domain.Snapshot) bool {
		kind := s.Phase.Kind()
		return kind == domain.PhaseDone || kind == domain.PhaseFailed || s.Connection != domain.ConnectionConnected
	})
	if err != nil {
		return err
	}
	if failure := snap.Failure(); failure != nil {
		return failure
	}
	result := snap.Result()
	if result == nil {
		return errConnectionLost
	}

	if err := printResult(stdout, *result, opts.json, time.Now()); err != nil {
		return err
	}

	if opts.exportPath != "" {
		path := opts.exportPath
		if path == exportDefault {
			path = ""
		}
		written, err := services.Exporter.Export(*result, path)
		if err != nil {
			return fmt.Errorf("export result: %w", err)
		}
		_, _ = fmt.Fprintf(stderr, "exported %s\n", written)
	}
	return nil
}

type snapshotSource interface {
	Snapshot() domain.Snapshot
}

// waitFor blocks until done accepts the current snapshot.
func waitFor(ctx context.Context, src snapshotSource, sink *progressSink, done func(domain.Snapshot) bool) (domain.Snapshot, error) {
	for {
		snap := src.Snapshot()
		if done(snap) {
			return snap, nil
		}
		select {
		case <-sink.changed:
		case <-sink.signOut:
			return snap, errSignedOut
		case <-ctx.Done():
			return snap, fmt.Errorf("waiting for the server: %w", ctx.Err())
		}
	}
}

// progressSink prints progress lines and wakes waitFor on every change.
type progressSink struct {
	out      io.Writer
	lastLine string

	changed     chan struct{}
	signOut     chan struct{}
	signOutOnce sync.Once
}

func newProgressSink(out io.Writer) *progressSink {
	return &progressSink{
		out:     out,
		changed: make(chan struct{}, 1),
		signOut: make(chan struct{}),
	}
}

func (s *progressSink) SessionChanged(snapshot domain.Snapshot) {
	if snapshot.Active() {
		p := snapshot.Progress()
		line := fmt.Sprintf("%3.0f%% %s", p.Percent, p.Message)
		if line != s.lastLine {
			_, _ = fmt.Fprintln(s.out, line)
			s.lastLine = line
		}
	}
	s.notify()
}

func (s *progressSink) SessionError(failure domain.Failure) {
	_, _ = fmt.Fprintf(s.out, "error (%s): %s\n", failure.Code, failure.Message)
	s.notify()
}

func (s *progressSink) SignOutRequested() {
	s.signOutOnce.Do(func() { close(s.signOut) })
}

func (s *progressSink) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func printResult(w io.Writer, result domain.Result, asJSON bool, at time.Time) error {
	if asJSON {
		data, err := json.MarshalIndent(export.NewDocument(result, at), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var b strings.Builder
	if result.Headline != "" {
		b.WriteString(result.Headline + "\n\n")
	}
	if result.Summary != "" {
		b.WriteString(result.Summary + "\n\n")
	}
	if len(result.Topics) > 0 {
		b.WriteString("Topics: " + strings.Join(result.Topics, ", ") + "\n")
	}
	if len(result.Entities) > 0 {
		b.WriteString("Entities:\n")
		kinds := make([]string, 0, len(result.Entities))
		for kind := range result.Entities {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&b, "  %s: %s\n", kind, strings.Join(result.Entities[kind], ", "))
		}
	}
	if len(result.Matches) > 0 {
		b.WriteString("Keyword matches:\n")
		for _, m := range result.Matches {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", m.Client, m.Keyword, m.MatchType)
		}
	}
	if result.Transcript != "" {
		b.WriteString("\nTranscript:\n" + result.Transcript + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
