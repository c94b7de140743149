package role_test

import (
	"bytes"

	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("ExportMatrix", func() {
	It("writes one row per role with granted cells marked", func() {
		admin := role.NewRole("Super Admin", "", []string{"*"})
		admin.IsSystem = true
		agent := role.NewRole("Agent", "", []string{"leads.view", "hr.*"})
		agent.UserCount = 2

		tree := navigation.Tree{
			{ID: "leads", Name: "Leads"},
			{ID: "hr", Name: "HR", Children: []navigation.Node{{ID: "hr-employees", Name: "Employees"}}},
		}

		var buf bytes.Buffer
		Expect(role.ExportMatrix(&buf, []*role.Role{admin, agent}, tree)).To(Succeed())

		f, err := excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows(role.MatrixSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal([]string{
			"Role", "Status", "System", "Users",
			"leads.view", "leads.edit", "leads.create", "leads.delete",
			"hr.view", "hr.edit", "hr.create", "hr.delete",
			"hr-employees.view", "hr-employees.edit", "hr-employees.create", "hr-employees.delete",
		}))
		Expect(rows[1]).To(Equal([]string{
			"Super Admin", "active", "yes", "0",
			"yes", "yes", "yes", "yes",
			"yes", "yes", "yes", "yes",
			"yes", "yes", "yes", "yes",
		}))
		Expect(rows[2]).To(Equal([]string{
			"Agent", "active", "", "2",
			"yes", "", "", "",
			"yes", "yes", "yes", "yes",
			"yes", "yes", "yes", "yes",
		}))
	})
})
