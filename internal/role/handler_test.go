package role_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Role Handler", func() {
	var (
		mockRepo *MockRepository
		router   *chi.Mux
		systemID int64
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mockRepo = NewMockRepository()
		service := role.NewService(mockRepo, &MockUsage{users: map[int64][]int64{}}, &RecordingPublisher{}, slogger)
		handler := role.NewHandler(&transport.BaseHandler{Logger: slogger}, service, navigation.Tree{{ID: "leads", Name: "Leads"}})

		admin := role.NewRole("Super Admin", "", []string{"*"})
		admin.IsSystem = true
		systemID = mockRepo.AddRole(admin)

		router = chi.NewRouter()
		router.Get("/roles", handler.ListRoles)
		router.Post("/roles", handler.CreateRole)
		router.Get("/roles/export", handler.ExportRoles)
		router.Get("/roles/{id}", handler.GetRole)
		router.Put("/roles/{id}", handler.UpdateRole)
		router.Delete("/roles/{id}", handler.DeleteRole)
		router.Post("/roles/{id}/permissions", handler.GrantPermission)
		router.Delete("/roles/{id}/permissions/{permission}", handler.RevokePermission)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(context.Background())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates a role and returns the external shape", func() {
		w := do(http.MethodPost, "/roles", `{"name":"Agent","description":"d","permissions":["leads.view"]}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var body map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("name", "Agent"))
		Expect(body).To(HaveKeyWithValue("userCount", BeNumerically("==", 0)))
		Expect(body).To(HaveKeyWithValue("isSystem", false))
		Expect(body).To(HaveKeyWithValue("status", "active"))
		Expect(body).To(HaveKey("createdAt"))
		Expect(body).To(HaveKey("updatedAt"))
	})

	It("lists roles", func() {
		w := do(http.MethodGet, "/roles", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var body role.RolesResponse
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Roles).To(HaveLen(1))
		Expect(body.Roles[0].IsSystem).To(BeTrue())
	})

	It("answers 409 when deleting a system role", func() {
		w := do(http.MethodDelete, "/roles/"+itoa(systemID), "")
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("SYSTEM_ROLE_PROTECTED"))
	})

	It("answers 404 for unknown roles", func() {
		w := do(http.MethodGet, "/roles/999", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("answers 400 for a malformed id", func() {
		w := do(http.MethodGet, "/roles/abc", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 400 for unknown body fields", func() {
		w := do(http.MethodPost, "/roles", `{"name":"Agent","colour":"red"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("grants and revokes single permissions", func() {
		w := do(http.MethodPost, "/roles", `{"name":"Agent","permissions":["leads.view"]}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created role.Role
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())

		w = do(http.MethodPost, "/roles/"+itoa(created.ID)+"/permissions", `{"permission":"leads.edit"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodDelete, "/roles/"+itoa(created.ID)+"/permissions/leads.view", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var updated role.Role
		Expect(json.NewDecoder(w.Body).Decode(&updated)).To(Succeed())
		Expect(updated.Permissions).To(Equal([]string{"leads.edit"}))
	})

	It("streams the xlsx export", func() {
		w := do(http.MethodGet, "/roles/export", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
		Expect(w.Body.Len()).To(BeNumerically(">", 0))
	})
})
