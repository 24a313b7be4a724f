// Package pgstore persists accounts and audit events in PostgreSQL. It is the
// production CredentialStore and a durable AuditSink; session state does not
// live here, sessions are Redis-resident by design of the session package.
//
// The schema is created on construction with CREATE TABLE IF NOT EXISTS, so a
// fresh database bootstraps itself. Structured account fields map to typed
// columns; the password history is a text array and the trusted-device set is
// a JSONB document.
package pgstore
