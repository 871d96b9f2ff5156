package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"live-transcript-reconciler/internal/observability/metrics"
)

func TestRequestLogger_PassesThrough(t *testing.T) {
	router := mux.NewRouter()
	router.Use(RequestLogger(metrics.DefaultMetrics))

	var gotPath string
	router.HandleFunc("/api/records/{speakerId}", func(w http.ResponseWriter, r *http.Request) {
		gotPath = routePath(r)
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	req := httptest.NewRequest("GET", "/api/records/alice", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if gotPath != "/api/records/{speakerId}" {
		t.Errorf("expected route template, got %q", gotPath)
	}
}

func TestStatusRecorder_CapturesExplicitStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	rec.WriteHeader(http.StatusAccepted)
	if rec.status != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rec.status)
	}
}

func TestRoutePath_FallsBackToRawPath(t *testing.T) {
	req := httptest.NewRequest("GET", "/unrouted", nil)
	if got := routePath(req); got != "/unrouted" {
		t.Errorf("expected /unrouted, got %q", got)
	}
}
