// Package authcore implements the authentication and session-security core of
// the SmartSecurity IoT cloud: credential verification with Argon2id, sliding
// window brute-force throttling, progressive account lockout, password policy
// enforcement, multi-device session lifecycle with per-account concurrency
// limits, signed access/refresh tokens, and security audit logging.
//
// The package is designed for concurrent request traffic: Service methods are
// safe to call from multiple goroutines after construction through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder], [Config],
// the [Account] model, outcome types, and the collaborator interfaces
// ([CredentialStore], [SessionStore], [AuditSink]). Mechanism lives in
// subpackages: password hashing and policy under password/, token signing
// under jwt/, Redis session persistence under session/, and the sliding
// window limiter under internal/rate.
//
// # What this package must NOT do
//
//   - Expose Redis clients, Lua scripts, or storage encodings in its public API.
//   - Hold package-level mutable state; every shared counter lives in the
//     injected stores.
//   - Distinguish "unknown user" from "wrong password" in anything a caller
//     can observe.
//
// # Failure posture
//
// Backend outages during the rate-limit or lockout gates fail closed: the
// login is denied, never silently allowed. Audit delivery is best effort and
// never aborts the operation that produced the event.
package authcore
