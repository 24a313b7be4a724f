package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Token-authenticated endpoint; origin checks add nothing here.
		return true
	},
}

const (
	wsStatusInterval = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

type wsStatus struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	ExpiresAt    string `json:"expires_at"`
	LastActivity string `json:"last_activity"`
}

// handleSessionSocket streams session liveness over a websocket. Each tick
// re-validates the token; validation slides the activity window, so an open
// socket keeps the session alive until its absolute expiry. When the session
// dies the socket closes with a policy-violation code.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	token := socketToken(r)
	if _, _, err := s.svc.ValidateSession(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reads are drained only to surface client close frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsStatusInterval)
	defer ticker.Stop()

	for {
		_, rec, err := s.svc.ValidateSession(r.Context(), token)
		if err != nil {
			deadline := time.Now().Add(wsWriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		status := wsStatus{
			Type:         "session_status",
			SessionID:    rec.ID,
			ExpiresAt:    rec.ExpiresAt.Format(time.RFC3339),
			LastActivity: rec.LastActivity.Format(time.RFC3339),
		}
		if err := conn.WriteJSON(status); err != nil {
			log.Printf("httpapi: websocket write failed: %v", err)
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
