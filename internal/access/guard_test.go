package access_test

import (
	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Guard", func() {
	var guard *access.Guard

	routes := []access.Route{
		{Path: "/", Entity: "dashboard"},
		{Path: "/leads", Entity: "leads-all"},
		{Path: "/leads/kanban", Entity: "leads-kanban"},
		{Path: "/hr/employees", Entity: "hr-employees"},
		{Path: "/admin/roles", Entity: "administration-roles"},
		{Path: "/help", Public: true},
	}

	set := func(tokens ...string) *permission.Set {
		s := permission.NewSet(tokens...)
		return &s
	}

	BeforeEach(func() {
		var err error
		guard, err = access.NewGuard(routes, "/login", "/", crmTree())
		Expect(err).NotTo(HaveOccurred())
	})

	It("lets anyone open the login page and public routes", func() {
		Expect(guard.Check(nil, "/login")).To(Equal(access.Decision{Allowed: true, Reason: access.ReasonPublic}))
		Expect(guard.Check(nil, "/help/faq").Allowed).To(BeTrue())
	})

	It("sends a missing session to login", func() {
		d := guard.Check(nil, "/leads")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(access.ReasonUnauthenticated))
		Expect(d.Redirect).To(Equal("/login"))
	})

	It("matches the longest route prefix", func() {
		d := guard.Check(set("leads-all.view"), "/leads/kanban")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Entity).To(Equal("leads-kanban"))
		Expect(d.Redirect).To(Equal("/"))

		d = guard.Check(set("leads-kanban.view"), "/leads/kanban?view=board")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(access.ReasonAuthorized))
	})

	It("does not match on partial segments", func() {
		d := guard.Check(set("dashboard.view"), "/leadsboard")
		Expect(d.Entity).To(Equal("dashboard"))
		Expect(d.Allowed).To(BeTrue())
	})

	It("lets a module wildcard open the module's pages", func() {
		Expect(guard.Check(set("hr.*"), "/hr/employees/42").Allowed).To(BeTrue())
		Expect(guard.Check(set("hr.*"), "/admin/roles").Allowed).To(BeFalse())
	})

	It("keeps the administration module wildcard separate from full access", func() {
		Expect(guard.Check(set("administration.*"), "/admin/roles").Allowed).To(BeTrue())
		Expect(guard.Check(set("administration.*"), "/leads").Allowed).To(BeFalse())
	})

	It("lets full access open everything", func() {
		for _, p := range []string{"/", "/leads", "/admin/roles", "/hr/employees"} {
			Expect(guard.Check(set("*"), p).Allowed).To(BeTrue(), p)
		}
	})

	It("allows unmapped paths for any session", func() {
		g, err := access.NewGuard([]access.Route{{Path: "/leads", Entity: "leads-all"}}, "/login", "/dashboard", crmTree())
		Expect(err).NotTo(HaveOccurred())

		d := g.Check(set(), "/settings/profile")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(access.ReasonAuthenticated))
	})

	It("does not redirect a forbidden dashboard to itself", func() {
		d := guard.Check(set(), "/")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(access.ReasonForbidden))
		Expect(d.Redirect).To(BeEmpty())
	})

	It("rejects malformed routes", func() {
		_, err := access.NewGuard([]access.Route{{Path: "leads", Entity: "leads-all"}}, "/login", "/", nil)
		Expect(err).To(HaveOccurred())

		_, err = access.NewGuard([]access.Route{{Path: "/leads"}}, "/login", "/", nil)
		Expect(err).To(HaveOccurred())
	})
})
