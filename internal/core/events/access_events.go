package events

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionsChanged = "access.permissions_changed"
)

const (
	ReasonRoleCreated        = "role.created"
	ReasonRoleUpdated        = "role.updated"
	ReasonRoleDeleted        = "role.deleted"
	ReasonUserRoleAssigned   = "user.role_assigned"
	ReasonUserOverrideSet    = "user.override_set"
	ReasonUserOverrideClear  = "user.override_cleared"
	ReasonManualNotification = "manual"
)

// PermissionsChangedEvent signals that the effective permissions of some
// users may have changed. Open views re-evaluate on their next interaction.
type PermissionsChangedEvent struct {
	BaseEvent
	RoleID  *int64  `json:"role_id,omitempty"`
	UserIDs []int64 `json:"user_ids"`
	Reason  string  `json:"reason"`
	// Origin names the server instance that produced the event.
	Origin string `json:"origin,omitempty"`
}

func NewPermissionsChangedEvent(reason string, roleID *int64, userIDs []int64) *PermissionsChangedEvent {
	if userIDs == nil {
		userIDs = []int64{}
	}
	data := map[string]interface{}{
		"reason":   reason,
		"user_ids": userIDs,
	}
	if roleID != nil {
		data["role_id"] = *roleID
	}
	return &PermissionsChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionsChanged,
			Timestamp: time.Now(),
			Data:      data,
		},
		RoleID:  roleID,
		UserIDs: userIDs,
		Reason:  reason,
	}
}

// Affects reports whether the event concerns userID.
func (e *PermissionsChangedEvent) Affects(userID int64) bool {
	return slices.Contains(e.UserIDs, userID)
}
