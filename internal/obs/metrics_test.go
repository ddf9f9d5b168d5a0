package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/organizations":                   "/organizations",
		"/organizations/top-level":         "/organizations/top-level",
		"/organizations/with-users":        "/organizations/with-users",
		"/organizations/my-organizations":  "/organizations/my-organizations",
		"/organizations/42":                "/organizations/:id",
		"/organizations/42/children":       "/organizations/:id/children",
		"/org/7/tasks":                     "/org/:orgId/tasks",
		"/org/7/tasks?limit=10":            "/org/:orgId/tasks",
		"/org/7/tasks/abc":                 "/org/:orgId/tasks/:id",
		"/org/7/tasks/abc/toggle-complete": "/org/:orgId/tasks/:id/toggle-complete",
		"/org/7/tasks/abc/extra":           "/org/7/tasks/abc/extra",
		"/audit-logs":                      "/audit-logs",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestObservePermissionCheck(t *testing.T) {
	before := testutil.ToFloat64(permissionChecksTotal.WithLabelValues("tasks", "view", "allowed"))
	ObservePermissionCheck("tasks", "view", true)
	after := testutil.ToFloat64(permissionChecksTotal.WithLabelValues("tasks", "view", "allowed"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/org/:orgId/tasks", "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/org/9/tasks", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/org/:orgId/tasks", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
}
