package access_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	appErrors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newAccessService(users fakeUsers, roles *fakeRoles, metrics *access.Metrics) *access.Service {
	slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	guard, err := access.NewGuard([]access.Route{
		{Path: "/", Entity: "dashboard"},
		{Path: "/leads", Entity: "leads-all"},
		{Path: "/admin/roles", Entity: "administration-roles"},
	}, "/login", "/", crmTree())
	Expect(err).NotTo(HaveOccurred())
	return access.NewService(users, roles, access.NewResolver(""), guard, crmTree(), metrics, slogger)
}

var _ = Describe("Access Service", func() {
	var (
		ctx     context.Context
		users   fakeUsers
		roles   *fakeRoles
		metrics *access.Metrics
		service *access.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		roles = &fakeRoles{roles: []*role.Role{
			activeRole(1, "Super Admin", "*"),
			activeRole(2, "Sales Executive", "dashboard.view", "leads-all.view", "leads-all.edit"),
		}}
		users = fakeUsers{
			10: {ID: 10, Name: "Asha", RoleID: int64Ptr(1), IsActive: true},
			11: {ID: 11, Name: "Ravi", RoleID: int64Ptr(2), IsActive: true},
			12: {ID: 12, Name: "Meena", IsActive: true},
		}
		metrics = access.NewMetrics(prometheus.NewRegistry())
		service = newAccessService(users, roles, metrics)
	})

	Describe("Session", func() {
		It("reports the role name and effective permissions", func() {
			s, err := service.Session(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Name).To(Equal("Ravi"))
			Expect(s.Role).To(Equal("Sales Executive"))
			Expect(s.Source).To(Equal(access.SourceRole))
			Expect(s.FullAccess).To(BeFalse())
			Expect(s.Permissions).To(ConsistOf("dashboard.view", "leads-all.view", "leads-all.edit"))
		})

		It("keeps the role name when an override is in force", func() {
			u := users[11]
			u.SetOverride([]string{"*"})

			s, err := service.Session(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Role).To(Equal("Sales Executive"))
			Expect(s.Source).To(Equal(access.SourceDirect))
			Expect(s.FullAccess).To(BeTrue())
		})

		It("sees role edits on the next call", func() {
			roles.roles[1].Permissions = []string{"hr.*"}

			s, err := service.Session(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Permissions).To(Equal([]string{"hr.*"}))
		})

		It("passes lookup errors through", func() {
			_, err := service.Session(ctx, 404)
			Expect(errors.Is(err, appErrors.ErrUserNotFound)).To(BeTrue())

			roles.err = appErrors.NewInternalError("db down", nil)
			_, err = service.Session(ctx, 11)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Navigation", func() {
		It("shows everything to full access", func() {
			tree, err := service.Navigation(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.IDs()).To(Equal(crmTree().IDs()))
		})

		It("trims the tree to the effective permissions", func() {
			tree, err := service.Navigation(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.IDs()).To(Equal([]string{"dashboard", "leads", "leads-all"}))
		})

		It("shows only the dashboard to users without a role", func() {
			tree, err := service.Navigation(ctx, 12)
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.IDs()).To(Equal([]string{"dashboard"}))
		})
	})

	Describe("CheckRoute", func() {
		It("treats a nil user as no session", func() {
			d, err := service.CheckRoute(ctx, nil, "/leads")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Redirect).To(Equal("/login"))
		})

		It("treats a vanished user as no session", func() {
			d, err := service.CheckRoute(ctx, int64Ptr(404), "/leads")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Reason).To(Equal(access.ReasonUnauthenticated))
		})

		It("decides with the effective set and counts the outcome", func() {
			d, err := service.CheckRoute(ctx, int64Ptr(11), "/leads")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeTrue())

			d, err = service.CheckRoute(ctx, int64Ptr(11), "/admin/roles")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Redirect).To(Equal("/"))

			Expect(testutil.ToFloat64(metrics.RouteDecisions().WithLabelValues("authorized"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.RouteDecisions().WithLabelValues("forbidden"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.Resolutions().WithLabelValues("role"))).To(Equal(2.0))
		})

		It("fails on storage errors", func() {
			roles.err = appErrors.NewInternalError("db down", nil)
			_, err := service.CheckRoute(ctx, int64Ptr(11), "/leads")
			Expect(err).To(HaveOccurred())
		})
	})

	It("works without metrics", func() {
		plain := newAccessService(users, roles, nil)
		_, err := plain.CheckRoute(ctx, int64Ptr(12), "/")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("PermissionSet", func() {
	It("exposes the effective set for authorization checks", func() {
		users := fakeUsers{1: &user.User{ID: 1, RoleID: int64Ptr(2)}}
		roles := &fakeRoles{roles: []*role.Role{activeRole(2, "HR", "hr.*")}}
		service := newAccessService(users, roles, nil)

		set, err := service.PermissionSet(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.CanView("hr")).To(BeTrue())
		Expect(set.CanView("leads")).To(BeFalse())
	})
})
