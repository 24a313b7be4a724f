// Package httpapi exposes the authentication service over HTTP. Handlers are
// thin: they parse requests, pull caller metadata into the context, call the
// service, and map outcomes to status codes. No security decision is made
// here.
//
// Error bodies are uniform {"error": "..."} objects and never leak which
// check failed beyond what the service already discloses.
package httpapi
