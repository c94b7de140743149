package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/frahmantamala/chitfund-crm/internal/transport"
)

type ServiceAPI interface {
	Session(ctx context.Context, userID int64) (*Session, error)
	Navigation(ctx context.Context, userID int64) (navigation.Tree, error)
	CheckRoute(ctx context.Context, userID *int64, path string) (Decision, error)
}

// Watcher hands out a channel of events of one type.
type Watcher interface {
	Watch(eventType string, buffer int) (<-chan events.Event, func())
}

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	Events    Watcher
	Heartbeat time.Duration
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, watcher Watcher) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Events:      watcher,
		Heartbeat:   25 * time.Second,
	}
}

// GetAccess handles GET /me/access
func (h *Handler) GetAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := errors.UserIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	session, err := h.Service.Session(r.Context(), userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, session)
}

// GetNavigation handles GET /me/navigation
func (h *Handler) GetNavigation(w http.ResponseWriter, r *http.Request) {
	userID, ok := errors.UserIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	tree, err := h.Service.Navigation(r.Context(), userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NavigationResponse{Navigation: tree})
}

// CheckRoute handles GET /access/route?path=. Authentication is optional.
func (h *Handler) CheckRoute(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.WriteAppError(w, errors.NewValidationFieldError("path", "path is required", errors.ErrCodeValidationFailed))
		return
	}

	var userID *int64
	if id, ok := errors.UserIDFromContext(r.Context()); ok {
		userID = &id
	}

	d, err := h.Service.CheckRoute(r.Context(), userID, path)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, d)
}

// StreamEvents handles GET /me/access/events as a server-sent event stream.
// A permissions_changed event carrying the refreshed session is sent whenever
// the caller's access may have changed.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := errors.UserIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	ch, cancel := h.Events.Watch(events.EventTypePermissionsChanged, 16)
	defer cancel()

	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	if err := rc.Flush(); err != nil {
		h.Logger.Error("access stream: flushing unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case e, open := <-ch:
			if !open {
				return
			}
			changed, ok := e.(*events.PermissionsChangedEvent)
			if !ok || !concerns(changed, userID) {
				continue
			}

			session, err := h.Service.Session(ctx, userID)
			if err != nil {
				h.Logger.Warn("access stream: session reload failed", "user_id", userID, "error", err)
				return
			}
			payload, err := json.Marshal(map[string]interface{}{
				"eventId": changed.EventID(),
				"reason":  changed.Reason,
				"session": session,
			})
			if err != nil {
				h.Logger.Error("access stream: encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: permissions_changed\nid: %s\ndata: %s\n\n", changed.EventID(), payload)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// concerns reports whether e may change userID's access. Manual
// notifications without a user list reach everyone.
func concerns(e *events.PermissionsChangedEvent, userID int64) bool {
	if e.Reason == events.ReasonManualNotification && len(e.UserIDs) == 0 {
		return true
	}
	return e.Affects(userID)
}
