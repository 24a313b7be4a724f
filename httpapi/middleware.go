package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/smartsec-cloud/authcore"
)

// callerContext copies client IP, user agent, and device name from the
// request into the context the service reads them from.
func callerContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = authcore.WithClientIP(ctx, clientIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		if name := r.Header.Get("X-Device-Name"); name != "" {
			ctx = authcore.WithDeviceName(ctx, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession rejects requests whose bearer token does not resolve to a
// live session. Handlers behind it may still re-verify the token themselves;
// the service treats that as a cheap repeated check.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, _, err := s.svc.ValidateSession(r.Context(), token); err != nil {
			writeServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// socketToken accepts a query-parameter token as a fallback, for the one
// route where browsers cannot set headers: the websocket upgrade. Tokens in
// URLs end up in access logs, so nothing else may use this.
func socketToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}

// clientIP prefers the first X-Forwarded-For hop, then falls back to the
// transport peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
