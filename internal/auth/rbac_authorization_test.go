package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	appErrors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

type stubPermissionSource map[int64][]string

func (s stubPermissionSource) PermissionSet(ctx context.Context, userID int64) (permission.Set, error) {
	tokens, ok := s[userID]
	if !ok {
		return permission.Set{}, appErrors.ErrUserNotFound
	}
	return permission.NewSet(tokens...), nil
}

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var (
		rbac *RBACAuthorization
		ok   http.HandlerFunc
	)

	ginkgo.BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		rbac = NewRBACAuthorization(stubPermissionSource{
			1: {"administration-roles.view"},
			2: {"*"},
			3: {"admin.*"},
			4: {"administration-roles.*"},
		}, nil, slogger)
		ok = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	})

	serve := func(h http.Handler, userID int64) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if userID > 0 {
			req = req.WithContext(appErrors.ContextWithUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	ginkgo.Context("when the caller holds the permission", func() {
		ginkgo.It("should pass the request through", func() {
			// Given
			h := rbac.RequireView("administration-roles")(ok)

			// When / Then
			gomega.Expect(serve(h, 1)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, 2)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, 4)).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.Context("when the caller lacks the permission", func() {
		ginkgo.It("should respond 403", func() {
			h := rbac.Require("administration-roles", permission.ActionEdit)(ok)
			gomega.Expect(serve(h, 1)).To(gomega.Equal(http.StatusForbidden))
		})
	})

	ginkgo.Context("without a session", func() {
		ginkgo.It("should respond 401", func() {
			h := rbac.RequireView("administration-roles")(ok)
			gomega.Expect(serve(h, 0)).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(serve(h, 99)).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Context("when the caller holds the parent module wildcard", func() {
		ginkgo.It("should pass requests for the module's pages", func() {
			// Given
			slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			tree := navigation.Tree{{ID: "administration", Name: "Administration", Children: []navigation.Node{
				{ID: "administration-roles", Name: "Roles"},
			}}}
			rbac = NewRBACAuthorization(stubPermissionSource{
				5: {"administration.*"},
				6: {"hr.*"},
			}, NewPermissionChecker(tree), slogger)
			h := rbac.Require("administration-roles", permission.ActionDelete)(ok)

			// When / Then
			gomega.Expect(serve(h, 5)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, 6)).To(gomega.Equal(http.StatusForbidden))
		})
	})

	ginkgo.Describe("RequireAdmin", func() {
		ginkgo.It("should admit only the global wildcard and its legacy spelling", func() {
			h := rbac.RequireAdmin()(ok)
			gomega.Expect(serve(h, 2)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, 3)).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, 4)).To(gomega.Equal(http.StatusForbidden))
		})
	})
})

var _ = ginkgo.Describe("DefaultPermissionChecker", func() {
	checker := NewPermissionChecker(navigation.Tree{
		{ID: "hr", Name: "HR", Children: []navigation.Node{{ID: "hr-employees", Name: "Employees"}}},
	})

	ginkgo.It("should match any of the required permissions", func() {
		set := permission.NewSet("leads.*", "hr-employees.view")

		gomega.Expect(checker.HasAnyPermission(set, permission.MustParse("payroll.view"), permission.MustParse("leads.*"))).To(gomega.BeTrue())
		gomega.Expect(checker.HasAnyPermission(set, permission.MustParse("hr.*"))).To(gomega.BeFalse())
		gomega.Expect(checker.HasAnyPermission(set, permission.MustParse("hr-employees.view"))).To(gomega.BeTrue())
		gomega.Expect(checker.HasAnyPermission(set, permission.MustParse("*"))).To(gomega.BeFalse())
		gomega.Expect(checker.IsAdmin(set)).To(gomega.BeFalse())
	})

	ginkgo.It("should let a module wildcard satisfy page permissions", func() {
		set := permission.NewSet("hr.*")

		gomega.Expect(checker.Allowed(set, "hr-employees", permission.ActionEdit)).To(gomega.BeTrue())
		gomega.Expect(checker.HasAnyPermission(set, permission.MustParse("hr-employees.delete"))).To(gomega.BeTrue())
		gomega.Expect(checker.Allowed(set, "leads", permission.ActionView)).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("Auth Handler middleware", func() {
	var (
		handler  *Handler
		tokenGen *JWTTokenGenerator
		seen     int64
		next     http.Handler
	)

	ginkgo.BeforeEach(func() {
		tokenGen = NewJWTTokenGenerator("a", "r", time.Minute, time.Hour)
		handler = NewHandler(NewService(newMockUserRepository(), tokenGen, bcrypt.MinCost, nil))
		seen = 0
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = appErrors.UserIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	request := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	ginkgo.It("should store the user id for a valid token", func() {
		// Given
		token, err := tokenGen.GenerateAccessToken("1", "agent@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// When
		w := httptest.NewRecorder()
		handler.AuthMiddleware(next).ServeHTTP(w, request(token))

		// Then
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(seen).To(gomega.Equal(int64(1)))
	})

	ginkgo.It("should reject missing tokens and inactive users", func() {
		w := httptest.NewRecorder()
		handler.AuthMiddleware(next).ServeHTTP(w, request(""))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))

		token, err := tokenGen.GenerateAccessToken("3", "retired@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		w = httptest.NewRecorder()
		handler.AuthMiddleware(next).ServeHTTP(w, request(token))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("should let anonymous requests through OptionalAuth", func() {
		w := httptest.NewRecorder()
		handler.OptionalAuth(next).ServeHTTP(w, request("garbage"))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(seen).To(gomega.BeZero())
	})
})
