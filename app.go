package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"mediaproc/internal/bootstrap"
	"mediaproc/internal/config"
	"mediaproc/internal/domain"
	"mediaproc/internal/export"
	"mediaproc/internal/ports"
	"mediaproc/internal/usecase"
)

const (
	eventState   = "mediaproc:state"
	eventError   = "mediaproc:error"
	eventSignOut = "mediaproc:signout"
)

var (
	ErrJobActive     = usecase.ErrJobActive
	ErrResetRequired = usecase.ErrResetRequired
	errNoResult      = errors.New("there is no result yet")
	errNoTranscript  = errors.New("the result has no transcript")
)

var exportDialogFilter = []runtime.FileFilter{
	{DisplayName: "JSON files", Pattern: "*.json"},
}

// App is the Wails application root.
type App struct {
	ctx context.Context

	client   *usecase.SessionClient
	exporter *export.JSONWriter
	cfg      config.Config
	logger   *slog.Logger
	bootErr  error

	clipboard  ports.Clipboard
	exportPath func(defaultDir string, defaultName string) (string, error)
}

func NewApp() *App {
	a := &App{clipboard: &wailsClipboard{}, logger: slog.Default()}
	a.exportPath = a.saveDialog
	return a
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.Failure{Code: domain.ErrorCodeConfig, Message: err.Error()})
		return
	}

	a.cfg = services.Config
	a.client = services.Client
	a.exporter = services.Exporter
	a.logger = services.Logger

	go func() {
		if err := a.client.Connect(ctx); err != nil {
			a.logger.Warn("session not connected", "error", err)
		}
	}()
}

func (a *App) shutdown(context.Context) {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		a.logger.Warn("close session", "error", err)
	}
}

// StartProcessing submits a job. reference is the segment id for tv and
// radio, or the video URL for youtube. After a result or an error the user
// must Reset before submitting again.
func (a *App) StartProcessing(kind string, reference string) (domain.View, error) {
	if err := a.requireReady(); err != nil {
		return domain.View{}, err
	}
	jobKind, err := domain.ParseJobKind(kind)
	if err != nil {
		return a.client.Snapshot().View(), err
	}
	req, err := domain.NewJobRequest(jobKind, reference)
	if err != nil {
		return a.client.Snapshot().View(), err
	}
	err = a.client.StartJob(req)
	return a.client.Snapshot().View(), err
}

// Reset clears a finished or failed job so a new one can start.
func (a *App) Reset() domain.View {
	if a.client == nil {
		return a.GetState()
	}
	a.client.Reset()
	return a.client.Snapshot().View()
}

// Logout closes the session and signs out of the identity provider.
func (a *App) Logout() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.client.Logout(a.runtimeContext())
	a.SignOutRequested()
	return err
}

// GetState returns the current session view.
func (a *App) GetState() domain.View {
	if a.client == nil {
		view := domain.Snapshot{Connection: domain.ConnectionDisconnected}.View()
		if a.bootErr != nil {
			view.State = domain.PhaseFailed
			view.Error = &domain.Failure{Code: domain.ErrorCodeConfig, Message: a.bootErr.Error()}
		}
		return view
	}
	return a.client.Snapshot().View()
}

// ExportResults asks for a destination and saves the current result as
// JSON. An empty path means the user cancelled.
func (a *App) ExportResults() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	result := a.client.Snapshot().Result()
	if result == nil {
		return "", errNoResult
	}

	path, err := a.exportPath(a.cfg.Export.Dir, a.exporter.DefaultFileName())
	if err != nil || path == "" {
		return "", err
	}

	written, err := a.exporter.Export(*result, path)
	if err != nil {
		a.SessionError(domain.Failure{Code: domain.ErrorCodeExport, Message: err.Error()})
		return "", err
	}
	a.logger.Info("result exported", "path", written)
	return written, nil
}

// CopyTranscript puts the transcript of the current result on the clipboard.
func (a *App) CopyTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	result := a.client.Snapshot().Result()
	if result == nil {
		return errNoResult
	}
	if result.Transcript == "" {
		return errNoTranscript
	}
	return a.clipboard.SetText(a.runtimeContext(), result.Transcript)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return a.cfg.Describe()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.client == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

type statePayload struct {
	domain.View
	Label string `json:"label"`
}

// SessionChanged emits session state updates to the frontend.
func (a *App) SessionChanged(snapshot domain.Snapshot) {
	view := snapshot.View()
	a.emit(eventState, statePayload{View: view, Label: phaseLabel(view)})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(failure domain.Failure) {
	a.emit(eventError, map[string]string{
		"code":    string(failure.Code),
		"message": errorMessage(failure.Code, failure.Message),
		"detail":  failure.Message,
	})
}

// SignOutRequested tells the frontend to return to the login screen.
func (a *App) SignOutRequested() {
	a.emit(eventSignOut, map[string]string{})
}

func (a *App) runtimeContext() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func (a *App) saveDialog(defaultDir string, defaultName string) (string, error) {
	return runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:            "Export results",
		DefaultDirectory: defaultDir,
		DefaultFilename:  defaultName,
		Filters:          exportDialogFilter,
	})
}

func phaseLabel(view domain.View) string {
	switch view.State {
	case domain.PhaseActive:
		return view.Title
	case domain.PhaseDone:
		return domain.CompletedMessage
	case domain.PhaseFailed:
		return "Processing failed"
	default:
		switch view.Connection {
		case domain.ConnectionConnecting:
			return "Connecting..."
		case domain.ConnectionConnected:
			return "Ready"
		case domain.ConnectionError:
			return "Connection error"
		default:
			return "Disconnected"
		}
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeConfig:
		return "Configuration error"
	case domain.ErrorCodeAuth:
		return "Authentication error"
	case domain.ErrorCodeTransport:
		return "Connection error"
	case domain.ErrorCodeNoConnection:
		return "No connection with the server"
	case domain.ErrorCodeJob:
		return "Processing failed"
	case domain.ErrorCodeExport:
		return "Export failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
