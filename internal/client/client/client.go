package client

import (
	"context"

	"github.com/dmitrijs2005/restosession/internal/client/models"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

// LogEntry is the body of POST /api/auth/_log.
type LogEntry struct {
	Error          string              `json:"error"`
	Endpoint       string              `json:"endpoint"`
	Timestamp      string              `json:"timestamp"`
	TraceID        string              `json:"trace_id"`
	DiagnosticInfo map[string]any      `json:"diagnosticInfo,omitempty"`
	NetworkInfo    *models.NetworkInfo `json:"networkInfo,omitempty"`
}

// Client is the transport contract to the auth backend. Every error it
// returns matches exactly one kind from package common via errors.Is.
type Client interface {
	Login(ctx context.Context, username, password string) (models.Tokens, error)
	// Register returns empty Tokens when the server does not log the new
	// user in.
	Register(ctx context.Context, req RegisterRequest) (models.Tokens, error)
	Me(ctx context.Context, accessToken string) (*models.Profile, error)
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	SendLog(ctx context.Context, entry LogEntry) error
	Ping(ctx context.Context) error
}
