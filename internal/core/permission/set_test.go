package permission_test

import (
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Set", func() {
	It("grants nothing when empty", func() {
		var s permission.Set
		Expect(s.FullAccess()).To(BeFalse())
		Expect(s.CanView("dashboard")).To(BeFalse())
		Expect(s.Strings()).To(BeEmpty())
	})

	It("short-circuits on the global wildcard", func() {
		s := permission.NewSet("leads.view", "*")
		Expect(s.FullAccess()).To(BeTrue())
		Expect(s.Grants("payroll", permission.ActionDelete)).To(BeTrue())
		Expect(s.CoversModule("anything")).To(BeTrue())
	})

	It("treats admin.* as full access", func() {
		Expect(permission.NewSet("admin.*").FullAccess()).To(BeTrue())
	})

	It("ignores unparsable tokens", func() {
		s := permission.NewSet("leads.view", "garbage", "", "hr.approve")
		Expect(s.Strings()).To(Equal([]string{"leads.view"}))
		Expect(s.Len()).To(Equal(1))
	})

	It("covers a module only through its wildcard", func() {
		s := permission.NewSet("leads.*", "hr.view")
		Expect(s.CoversModule("leads")).To(BeTrue())
		Expect(s.CoversModule("hr")).To(BeFalse())
		Expect(s.Grants("leads", permission.ActionCreate)).To(BeTrue())
		Expect(s.Grants("leads-all", permission.ActionView)).To(BeFalse())
	})

	It("returns a copy from Strings", func() {
		s := permission.NewSet("leads.view")
		out := s.Strings()
		out[0] = "mutated"
		Expect(s.Strings()).To(Equal([]string{"leads.view"}))
	})
})

var _ = Describe("Decode", func() {
	It("decodes a JSON list", func() {
		tokens, ok := permission.Decode([]byte(`["leads.view","hr.*"]`))
		Expect(ok).To(BeTrue())
		Expect(tokens).To(Equal([]string{"leads.view", "hr.*"}))
	})

	It("degrades malformed data to an empty list", func() {
		tokens, ok := permission.Decode([]byte(`{"leads":true`))
		Expect(ok).To(BeFalse())
		Expect(tokens).To(BeEmpty())
		Expect(tokens).NotTo(BeNil())
	})

	It("treats null and empty input as an empty list", func() {
		tokens, ok := permission.Decode([]byte("null"))
		Expect(ok).To(BeTrue())
		Expect(tokens).To(BeEmpty())

		tokens, ok = permission.Decode(nil)
		Expect(ok).To(BeTrue())
		Expect(tokens).To(BeEmpty())
	})

	It("encodes nil as an empty list", func() {
		Expect(string(permission.Encode(nil))).To(Equal("[]"))
	})
})
