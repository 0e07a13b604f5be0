package bootstrap

import (
	"io"
	"log/slog"
	"os"

	"mediaproc/internal/auth"
	"mediaproc/internal/config"
	"mediaproc/internal/export"
	"mediaproc/internal/ports"
	"mediaproc/internal/providers/socketio"
	"mediaproc/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Client   *usecase.SessionClient
	Exporter *export.JSONWriter
	Config   config.Config
	Logger   *slog.Logger
}

// Build wires all backend dependencies for the current runtime. Logs go to
// stderr.
func Build(eventSink ports.EventSink) (Services, error) {
	return BuildWithLogOutput(eventSink, os.Stderr)
}

func BuildWithLogOutput(eventSink ports.EventSink, logOutput io.Writer) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := config.NewLogger(cfg.Log, logOutput)

	authenticator, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return Services{}, err
	}

	client, err := usecase.NewSessionClient(
		authenticator,
		socketio.NewDialer(socketio.Config{
			Path:             cfg.Backend.SocketPath,
			Namespace:        cfg.Backend.Namespace,
			HandshakeTimeout: cfg.Backend.HandshakeTimeout,
			Logger:           logger,
		}),
		eventSink,
		usecase.Config{
			Endpoint:     cfg.Backend.URL,
			SignOutDelay: cfg.Auth.SignOutDelay,
			Logger:       logger,
		},
	)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Client:   client,
		Exporter: export.NewJSONWriter(cfg.Export.Dir),
		Config:   cfg,
		Logger:   logger,
	}, nil
}

// newAuthenticator prefers an identity provider command over a static token.
func newAuthenticator(cfg config.AuthConfig) (ports.Authenticator, error) {
	if cfg.TokenCommand != "" {
		return auth.NewCommandProvider(cfg.TokenCommand, cfg.SignOutCommand)
	}
	return auth.NewStaticProvider(cfg.Token), nil
}
