package common

import "errors"

var (
	// Credential errors. Never retried.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Transport-level failures.
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrServerUnavailable  = errors.New("server unavailable")
	ErrMalformedResponse  = errors.New("malformed response")

	// Token lifecycle errors.
	ErrTokenExpired  = errors.New("token expired")
	ErrRefreshFailed = errors.New("refresh failed")

	// Local state errors.
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
	ErrNotAuthenticated      = errors.New("not authenticated")
)

// UserMessage returns the human-readable text shown to the user for an
// error of a known kind. Unknown errors produce a generic message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrRefreshFailed):
		return "Your session has expired, please log in again"
	case errors.Is(err, ErrTokenExpired):
		return "Your session has expired"
	case errors.Is(err, ErrNetworkUnavailable):
		return "Network unavailable, check your connection"
	case errors.Is(err, ErrServerUnavailable):
		return "Server unavailable, please try again later"
	case errors.Is(err, ErrLocalDataNotAvailable):
		return "No saved session is available offline"
	case errors.Is(err, ErrNotAuthenticated):
		return "You are not logged in"
	default:
		return "Something went wrong, please try again"
	}
}
