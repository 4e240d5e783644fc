package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"medfollow/pkg"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/catalogue/{language}/options/{field}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/catalogue/{language}/options/{field}", "418"))
	for _, path := range []string{"/catalogue/English/options/doctors", "/catalogue/Hindi/options/procedure_types"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/catalogue/{language}/options/{field}", "418"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests under one route label, got %v", after-before)
	}
}

func TestRecordGuidanceLabels(t *testing.T) {
	before := testutil.ToFloat64(classifications.WithLabelValues("wound", "moderate"))
	RecordGuidance(pkg.GuidanceResult{Category: pkg.CategoryWound, Severity: pkg.SeverityModerate, Source: pkg.SourceLLM})
	if got := testutil.ToFloat64(classifications.WithLabelValues("wound", "moderate")) - before; got != 1 {
		t.Fatalf("expected one wound classification, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	RecordGuidance(pkg.GuidanceResult{Category: pkg.CategoryFever, Severity: pkg.SeverityModerate, Source: pkg.SourceKeywords})
	RecordVitals(pkg.SeverityHigh)
	RecordLogAppendFailure(pkg.KindAppointment)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"medfollow_classifications_total", "medfollow_vitals_total", "medfollow_log_append_failures_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %s missing from output", name)
		}
	}
}
