package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"mediaproc/internal/domain"
)

var (
	ErrNoToken    = domain.ErrNoToken
	ErrSignedOut  = errors.New("session has been signed out")
	errNoTokenOut = errors.New("token command printed nothing")
)

// StaticProvider hands out a token taken from configuration.
type StaticProvider struct {
	mu        sync.Mutex
	token     string
	signedOut bool
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: strings.TrimSpace(token)}
}

func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signedOut {
		return "", ErrSignedOut
	}
	if p.token == "" {
		return "", ErrNoToken
	}
	return p.token, nil
}

// SignOut forgets the token. Later Token calls fail with ErrSignedOut.
func (p *StaticProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedOut = true
	p.token = ""
	return nil
}

// CommandProvider obtains tokens from an external command, typically an
// identity provider CLI that prints an access token on stdout.
type CommandProvider struct {
	tokenCommand   []string
	signOutCommand []string
}

// NewCommandProvider splits both commands with shell quoting rules. An empty
// sign-out command makes SignOut a no-op.
func NewCommandProvider(tokenCommand string, signOutCommand string) (*CommandProvider, error) {
	tokenArgs, err := shellwords.Parse(tokenCommand)
	if err != nil {
		return nil, fmt.Errorf("parse token command: %w", err)
	}
	if len(tokenArgs) == 0 {
		return nil, ErrNoToken
	}
	signOutArgs, err := shellwords.Parse(signOutCommand)
	if err != nil {
		return nil, fmt.Errorf("parse sign-out command: %w", err)
	}
	return &CommandProvider{
		tokenCommand:   tokenArgs,
		signOutCommand: signOutArgs,
	}, nil
}

func (p *CommandProvider) Token(ctx context.Context) (string, error) {
	out, err := run(ctx, p.tokenCommand)
	if err != nil {
		return "", fmt.Errorf("token command failed: %w", err)
	}
	token := firstLine(out)
	if token == "" {
		return "", errNoTokenOut
	}
	return token, nil
}

func (p *CommandProvider) SignOut(ctx context.Context) error {
	if len(p.signOutCommand) == 0 {
		return nil
	}
	if _, err := run(ctx, p.signOutCommand); err != nil {
		return fmt.Errorf("sign-out command failed: %w", err)
	}
	return nil
}

func run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return "", fmt.Errorf("%w: %s", err, detail)
		}
		return "", err
	}
	return stdout.String(), nil
}

func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
