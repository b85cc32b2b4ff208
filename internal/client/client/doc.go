// Package client contains the HTTP transport to the restaurant backend's
// auth API and the bootstrap of the local SQLite database.
//
// # Overview
//
//  1. Client is the transport contract: Login, Register, Me, Refresh,
//     Logout, SendLog and Ping against /api/auth/*.
//  2. HTTPClient implements it with net/http. Login posts form-encoded
//     credentials; register and refresh post JSON; me and logout carry a
//     bearer token. Decoded profiles are validated before they are returned.
//  3. InitDatabase and RunMigrations open the durable tier's database and
//     apply the embedded goose migrations.
//
// # Error Handling
//
// Every failure is an *APIError whose Kind is one of the sentinels in
// package common, so callers match with errors.Is:
//
//	401 on login        -> ErrInvalidCredentials
//	401 on me           -> ErrTokenExpired
//	non-2xx on refresh  -> ErrRefreshFailed
//	4xx on register     -> ErrInvalidCredentials (except 429)
//	other non-2xx       -> ErrServerUnavailable
//	transport failure   -> ErrNetworkUnavailable
//	undecodable body    -> ErrMalformedResponse (also matches ErrServerUnavailable)
//
// Context cancellation is returned as the context error, not as a kind.
//
// TokenExpiry reads a JWT's exp without verifying it, which lets callers
// skip a profile fetch that is bound to fail.
package client
