// Package services implements the client-side session manager: the device
// aware login flow, the profile synchronizer with its refresh-on-401
// sub-flow, and the SessionController that owns the Session and is the only
// type the rest of the application talks to.
//
// # Flow
//
//	SessionController.Login
//	  -> LoginFlow (desktop: one attempt; mobile: up to N attempts with backoff)
//	  -> ReplicatedStore (persist tokens)
//	  -> ProfileSynchronizer (background, guards bypassed for the first fetch)
//	  -> probe.Reporter (every attempt, fire-and-forget)
//
// # Loop protection
//
// Two persisted debounce guards (profile_sync_timestamp and
// token_refresh_timestamp) stop refresh -> fetch -> 401 -> refresh cycles.
// In-flight fetches and refreshes are additionally shared through
// singleflight, so simultaneous callers join one request instead of racing
// the guards.
package services
