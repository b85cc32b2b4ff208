// Package storage implements the credential store: access token, refresh
// token and cached profile replicated across independent tiers.
//
// # Tiers
//
// Each backend implements Tier. Three are used in production, in priority
// order:
//
//  1. DurableTier - SQLite metadata table; survives restarts.
//  2. RedisTier or MemoryTier - session-scoped; entries expire with the
//     session TTL.
//  3. CookieTier - small values in the HTTP cookie jar shared with the
//     transport, so they are visible on every request.
//
// # Replication
//
// ReplicatedStore writes to every tier, reads in priority order and
// promotes a value found in a weaker tier into the others. A failing tier is
// logged and skipped, never surfaced, as long as one tier still works.
// Concurrent writes are last-write-wins per tier.
package storage
