package access_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	appErrors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// asUser stands in for the auth middleware.
func asUser(id int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(appErrors.ContextWithUserID(r.Context(), id)))
		})
	}
}

var _ = Describe("Access Handler", func() {
	var (
		bus     *events.EventBus
		handler *access.Handler
		roles   *fakeRoles
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		roles = &fakeRoles{roles: []*role.Role{activeRole(2, "Sales Executive", "dashboard.view", "leads-all.view")}}
		users := fakeUsers{11: {ID: 11, Name: "Ravi", RoleID: int64Ptr(2), IsActive: true}}
		bus = events.NewEventBus(slogger)
		handler = access.NewHandler(&transport.BaseHandler{Logger: slogger}, newAccessService(users, roles, nil), bus)
	})

	router := func(userID int64) *chi.Mux {
		r := chi.NewRouter()
		r.Get("/access/route", handler.CheckRoute)
		r.Group(func(r chi.Router) {
			if userID > 0 {
				r.Use(asUser(userID))
			}
			r.Get("/me/access", handler.GetAccess)
			r.Get("/me/navigation", handler.GetNavigation)
			r.Get("/me/access/events", handler.StreamEvents)
		})
		return r
	}

	get := func(r http.Handler, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("returns the session of the caller", func() {
		w := get(router(11), "/me/access")
		Expect(w.Code).To(Equal(http.StatusOK))

		var body map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("role", "Sales Executive"))
		Expect(body).To(HaveKeyWithValue("source", "role"))
		Expect(body["permissions"]).To(ConsistOf("dashboard.view", "leads-all.view"))
	})

	It("rejects calls without a session", func() {
		Expect(get(router(0), "/me/access").Code).To(Equal(http.StatusUnauthorized))
		Expect(get(router(0), "/me/navigation").Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns the filtered navigation", func() {
		w := get(router(11), "/me/navigation")
		Expect(w.Code).To(Equal(http.StatusOK))

		var body access.NavigationResponse
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Navigation.IDs()).To(Equal([]string{"dashboard", "leads", "leads-all"}))
	})

	It("checks routes with or without a session", func() {
		w := get(router(0), "/access/route?path=/leads")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"redirect":"/login"`))

		Expect(get(router(0), "/access/route").Code).To(Equal(http.StatusBadRequest))
	})

	It("streams permission changes to the affected user", func() {
		server := httptest.NewServer(router(11))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/me/access/events", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		lines := bufio.NewScanner(resp.Body)
		next := func() string {
			Expect(lines.Scan()).To(BeTrue())
			return lines.Text()
		}
		Expect(next()).To(Equal("event: ready"))

		roles.roles[0].Permissions = []string{"*"}
		Expect(bus.PublishSync(ctx, events.NewPermissionsChangedEvent(events.ReasonRoleUpdated, int64Ptr(99), []int64{77}))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewPermissionsChangedEvent(events.ReasonRoleUpdated, int64Ptr(2), []int64{11}))).To(Succeed())

		var data string
		for {
			line := next()
			if strings.HasPrefix(line, "event: ") {
				Expect(line).To(Equal("event: permissions_changed"))
			}
			if strings.HasPrefix(line, "data: ") && line != "data: {}" {
				data = strings.TrimPrefix(line, "data: ")
				break
			}
		}

		var payload struct {
			Reason  string         `json:"reason"`
			Session access.Session `json:"session"`
		}
		Expect(json.Unmarshal([]byte(data), &payload)).To(Succeed())
		Expect(payload.Reason).To(Equal(events.ReasonRoleUpdated))
		Expect(payload.Session.FullAccess).To(BeTrue())
	})
})
