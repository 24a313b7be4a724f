// Package rate implements a Redis-backed sliding-window attempt counter.
//
// # Window semantics
//
// Each key holds a sorted set of attempt timestamps. A check evicts entries
// older than the trailing window, records the current attempt, counts, and
// refreshes the key TTL, all inside one MULTI/EXEC pipeline so the decision
// is atomic per key under concurrent traffic. A call is allowed while the
// count of prior attempts in the window is below the limit; with a limit of
// five, the sixth call inside the window is the first rejected one.
//
// # What this package must NOT do
//
//   - Fail open: transport errors surface to the caller, which denies.
//   - Choose keys or limits; callers namespace keys (e.g. "login:<ip>").
package rate
