// Package jwt mints and verifies the signed access and refresh tokens issued
// for sessions. Both token kinds carry issuer, audience, expiry, and a typ
// claim; verification pins the expected typ so a refresh token can never be
// used where an access token is required, or vice versa.
//
// Every verification failure collapses to ErrTokenInvalid. Callers must not
// learn whether a signature, expiry, or claim check failed.
package jwt
