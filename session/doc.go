// Package session persists per-device session records in Redis.
//
// Each session is a hash under <prefix>:<id> with a per-account sorted-set
// index ordered by creation time. Creation, eviction of the oldest active
// sessions, and index pruning run in a single Lua script so the per-account
// concurrency limit holds under concurrent logins without any in-process
// lock.
//
// # What this package must NOT do
//
//   - Decide policy: limits, timeouts, and token minting belong to the
//     calling service.
//   - Store token material. Sessions are referenced by ID from token claims.
package session
