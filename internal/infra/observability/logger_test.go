package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/finledger-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Delete("/v1/expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		observability.SetRequestUser(r.Context(), "asha")
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

func TestZapLoggerMiddleware_LogsRouteAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newLoggedRouter(zap.New(core))

	req := httptest.NewRequest(http.MethodDelete, "/v1/expenses/65f1c0ffee", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel {
		t.Errorf("expected warn for 404, got %s", e.Level)
	}
	fields := e.ContextMap()
	if fields["route"] != "/v1/expenses/{id}" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
	if fields["username"] != "asha" {
		t.Errorf("expected username asha, got %v", fields["username"])
	}
	if fields["status"] != int64(http.StatusNotFound) {
		t.Errorf("expected status 404, got %v", fields["status"])
	}
}

func TestZapLoggerMiddleware_ProbesAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newLoggedRouter(zap.New(core))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("expected debug for health probe, got %s", entries[0].Level)
	}
	if _, ok := entries[0].ContextMap()["username"]; ok {
		t.Error("anonymous request should not carry a username")
	}
}

func TestSetRequestUser_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	observability.SetRequestUser(req.Context(), "asha")
}
