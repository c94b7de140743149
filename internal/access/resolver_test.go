package access_test

import (
	"github.com/frahmantamala/chitfund-crm/internal/access"
	userDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/user"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolver", func() {
	var (
		resolver *access.Resolver
		table    role.Table
	)

	BeforeEach(func() {
		resolver = access.NewResolver("")
		inactive := activeRole(3, "Retired", "hr.*")
		inactive.Deactivate()
		table = role.NewTable([]*role.Role{
			activeRole(1, "Sales Executive", "leads.view", "leads.edit"),
			activeRole(2, "Empty"),
			inactive,
		})
	})

	It("prefers a direct override over the role", func() {
		u := &user.User{ID: 7, RoleID: int64Ptr(1)}
		u.SetOverride([]string{"hr.view"})

		res := resolver.Resolve(u, table)
		Expect(res.Source).To(Equal(access.SourceDirect))
		Expect(res.Permissions).To(Equal([]string{"hr.view"}))
		Expect(res.Role).To(BeNil())
	})

	It("keeps an empty override empty", func() {
		u := &user.User{ID: 7, RoleID: int64Ptr(1)}
		u.SetOverride([]string{})

		res := resolver.Resolve(u, table)
		Expect(res.Source).To(Equal(access.SourceDirect))
		Expect(res.Permissions).NotTo(BeNil())
		Expect(res.Permissions).To(BeEmpty())
	})

	It("uses the active role's permissions", func() {
		res := resolver.Resolve(&user.User{ID: 7, RoleID: int64Ptr(1)}, table)
		Expect(res.Source).To(Equal(access.SourceRole))
		Expect(res.Role.Name).To(Equal("Sales Executive"))
		Expect(res.Permissions).To(Equal([]string{"leads.view", "leads.edit"}))
	})

	It("returns a copy that callers may modify", func() {
		res := resolver.Resolve(&user.User{ID: 7, RoleID: int64Ptr(1)}, table)
		res.Permissions[0] = "*"

		r, _ := table.Lookup(1)
		Expect(r.Permissions[0]).To(Equal("leads.view"))
	})

	It("returns an empty list for a role without permissions", func() {
		res := resolver.Resolve(&user.User{ID: 7, RoleID: int64Ptr(2)}, table)
		Expect(res.Source).To(Equal(access.SourceRole))
		Expect(res.Permissions).NotTo(BeNil())
		Expect(res.Permissions).To(BeEmpty())
	})

	DescribeTable("falls back to the default list",
		func(u *user.User) {
			res := resolver.Resolve(u, table)
			Expect(res.Source).To(Equal(access.SourceDefault))
			Expect(res.Permissions).To(Equal([]string{"dashboard.view"}))
		},
		Entry("without a role", &user.User{ID: 7}),
		Entry("with a deleted role", &user.User{ID: 7, RoleID: int64Ptr(99)}),
		Entry("with an inactive role", &user.User{ID: 7, RoleID: int64Ptr(3)}),
		Entry("for a nil user", nil),
	)

	Describe("unreadable stored overrides", func() {
		It("falls back to the default list without a role", func() {
			u, malformed := user.FromDataModel(&userDatamodel.User{ID: 7, HasOverride: true, DirectPermissions: "{not json"})
			Expect(malformed).To(BeTrue())

			res := resolver.Resolve(u, role.NewTable(nil))
			Expect(res.Source).To(Equal(access.SourceDefault))
			Expect(res.Permissions).To(Equal([]string{"dashboard.view"}))
		})

		It("lets the assigned role apply", func() {
			u, _ := user.FromDataModel(&userDatamodel.User{ID: 7, RoleID: int64Ptr(1), HasOverride: true, DirectPermissions: "not-json"})

			res := resolver.Resolve(u, table)
			Expect(res.Source).To(Equal(access.SourceRole))
			Expect(res.Permissions).To(Equal([]string{"leads.view", "leads.edit"}))
		})
	})

	It("honours a configured default", func() {
		res := access.NewResolver("leads.view").Resolve(&user.User{ID: 7}, table)
		Expect(res.Permissions).To(Equal([]string{"leads.view"}))
	})
})
