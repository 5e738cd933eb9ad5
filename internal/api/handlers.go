package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rentdesk/realtime/internal/types"
)

const (
	defaultHistoryLimit      = 50
	maxHistoryLimit          = 200
	defaultNotificationLimit = 20
)

func (s *Server) writeJson(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Println("failed to write response:", err)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	// the connection authenticates in-band; no identity is required here
	if err := s.gateway.HandleConnection(conn); err != nil {
		s.log.Println("error adopting connection:", err)
		conn.Close()
	}
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	partnerId := r.URL.Query().Get("user")
	if partnerId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	messages, err := s.repo.GetConversation(userId, partnerId, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if messages == nil {
		messages = []types.ChatMessage{}
	}
	s.writeJson(w, http.StatusOK, messages)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.repo.UnreadCount(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := queryInt(r, "limit", defaultNotificationLimit)
	offset := queryInt(r, "offset", 0)

	notifications, err := s.repo.GetNotifications(userId, unreadOnly, limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if notifications == nil {
		notifications = []types.Notification{}
	}
	s.writeJson(w, http.StatusOK, notifications)
}

// pushNotification is the service-to-service ingress for the notification
// bridge: the business layer persists a notification, then posts it here for
// live delivery to any online session.
func (s *Server) pushNotification(w http.ResponseWriter, r *http.Request) {
	var n types.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.bridge.Push(&n); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type maintenanceUpdateRequest struct {
	RequestId string    `json:"request_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) maintenanceUpdate(w http.ResponseWriter, r *http.Request) {
	var req maintenanceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RequestId == "" || req.Status == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = time.Now().UTC()
	}

	s.bridge.MaintenanceUpdate(req.RequestId, req.Status, req.UpdatedAt)
	w.WriteHeader(http.StatusAccepted)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
