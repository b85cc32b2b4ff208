// Package common contains shared constants and sentinel errors used across
// restosession components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// Persisted credential keys. Every tier stores values under these names, so
// they must stay stable across releases.
const (
	KeyAccessToken      = "token"
	KeyRefreshToken     = "refresh_token"
	KeyUserProfile      = "user_profile"
	KeyProfileTimestamp = "user_profile_timestamp"
	KeyUserRole         = "user_role"
	KeySessionSnapshot  = "session_snapshot"

	// debounce guards
	KeyProfileSyncTimestamp  = "profile_sync_timestamp"
	KeyTokenRefreshTimestamp = "token_refresh_timestamp"

	KeyLogoutTimestamp = "logout_timestamp"
)

// BackupSuffix is appended to a key when its value is preserved before a clear.
const BackupSuffix = "_backup"

// BackupKey returns the name under which key is preserved on logout.
func BackupKey(key string) string {
	return key + BackupSuffix
}

// SessionKeys lists every key owned by an authenticated session. Logout
// clears all of them.
var SessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyUserProfile,
	KeyProfileTimestamp,
	KeyUserRole,
	KeySessionSnapshot,
	KeyProfileSyncTimestamp,
	KeyTokenRefreshTimestamp,
}
