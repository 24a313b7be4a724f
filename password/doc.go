// Package password provides Argon2id credential hashing in PHC string format
// and the password policy: strength validation, secure generation, and the
// offline compromised-password check.
//
// Hashing and verification are constant-time with respect to the derived
// key. The compromised check is a best-effort membership test against a
// bundled common-password set; it is never exhaustive.
package password
