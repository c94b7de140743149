package auth

import (
	"context"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/transport"
)

// PermissionSource yields the current effective permissions of a user.
type PermissionSource interface {
	PermissionSet(ctx context.Context, userID int64) (permission.Set, error)
}

type RBACAuthorization struct {
	*transport.BaseHandler
	source  PermissionSource
	checker PermissionChecker
}

func NewRBACAuthorization(source PermissionSource, checker PermissionChecker, logger *slog.Logger) *RBACAuthorization {
	if checker == nil {
		checker = NewPermissionChecker(nil)
	}
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		source:      source,
		checker:     checker,
	}
}

// Check wraps next so that it runs only when the caller is allowed to perform
// action on entity. Permissions are resolved on every request.
func (ra *RBACAuthorization) Check(next http.HandlerFunc, entity string, action permission.Action) http.HandlerFunc {
	return ra.guard(next, func(set permission.Set) bool {
		return ra.checker.Allowed(set, entity, action)
	}, "entity", entity, "action", action)
}

func (ra *RBACAuthorization) Require(entity string, action permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, entity, action)
	}
}

func (ra *RBACAuthorization) RequireView(entity string) func(http.Handler) http.Handler {
	return ra.Require(entity, permission.ActionView)
}

// RequireAdmin admits only callers holding the global wildcard.
func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.guard(next.ServeHTTP, ra.checker.IsAdmin, "required", permission.GlobalToken)
	}
}

func (ra *RBACAuthorization) guard(next http.HandlerFunc, allowed func(permission.Set) bool, attrs ...any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := errors.UserIDFromContext(r.Context())
		if !ok {
			ra.Logger.Warn("authorization check failed: user not found in context")
			ra.WriteAppError(w, errors.ErrInvalidToken)
			return
		}

		set, err := ra.source.PermissionSet(r.Context(), userID)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrCodeUserNotFound) {
				ra.WriteAppError(w, errors.ErrInvalidToken)
				return
			}
			ra.Logger.ErrorContext(r.Context(), "authorization check failed", append([]any{"error", err, "user_id", userID}, attrs...)...)
			ra.WriteAppError(w, err)
			return
		}

		if !allowed(set) {
			ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				append([]any{"user_id", userID, "user_permissions", set.Strings()}, attrs...)...)
			ra.WriteAppError(w, errors.ErrInsufficientAccess)
			return
		}

		next.ServeHTTP(w, r)
	}
}
