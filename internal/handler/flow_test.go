package handler_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/handler"
	"github.com/boddenberg/finledger-go/internal/infra/cache"
	"github.com/boddenberg/finledger-go/internal/infra/client"
	"github.com/boddenberg/finledger-go/internal/infra/events"
	"github.com/boddenberg/finledger-go/internal/infra/memstore"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/infra/resilience"
	"github.com/boddenberg/finledger-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	token  string
}

func newTestServer(t *testing.T, llmURL string) *testServer {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memstore.New()
	summaries := cache.New[*domain.DashboardSummary](64, time.Minute)
	t.Cleanup(summaries.Close)
	summaryCache := service.NewSummaryCache(summaries)
	publisher := events.NopPublisher{}

	llm := client.NewLLMClient(
		&http.Client{Timeout: 2 * time.Second},
		client.LLMConfig{BaseURL: llmURL, Model: "llama3-8b-8192", Temperature: 0.6},
		resilience.NewCircuitBreaker("llm"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 2},
		metrics,
	)

	deps := handler.Deps{
		Ledger:      service.NewLedgerService(store, summaryCache, publisher, metrics, logger),
		Profile:     service.NewProfileService(store, summaryCache, publisher, metrics, logger),
		Auth:        service.NewAuthService(store, store, "flow-secret", time.Hour, bcrypt.MinCost, logger),
		Suggestions: service.NewSuggestionService(store, llm, metrics, logger),
		Store:       store,
	}
	return &testServer{t: t, router: handler.NewRouter(deps, metrics, logger)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (s *testServer) signup(username string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/v1/auth/signup", map[string]string{"username": username, "password": "secret1"})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	s.token = decode[domain.AuthResponse](s.t, rec).Token
}

func TestFlow_SignupSetsCookie(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:0")

	rec := srv.do(http.MethodPost, "/v1/auth/signup", map[string]string{"username": "asha", "password": "secret1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	resp := decode[domain.AuthResponse](t, rec)
	if resp.RedirectTo != "/setup-profile" {
		t.Errorf("expected redirect to /setup-profile, got %q", resp.RedirectTo)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "token" || !cookies[0].HttpOnly || cookies[0].Value != resp.Token {
		t.Fatalf("expected HttpOnly token cookie, got %+v", cookies)
	}

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/v1/expenses", nil)
	req.AddCookie(cookies[0])
	got := httptest.NewRecorder()
	srv.router.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Errorf("expected 200 with cookie, got %d", got.Code)
	}

	dup := srv.do(http.MethodPost, "/v1/auth/signup", map[string]string{"username": "asha", "password": "secret1"})
	if dup.Code != http.StatusConflict {
		t.Errorf("expected 409 on duplicate signup, got %d", dup.Code)
	}
}

func TestFlow_LoginAndUnauthorized(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:0")
	srv.signup("asha")
	srv.token = ""

	if rec := srv.do(http.MethodGet, "/v1/expenses", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	if rec := srv.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "asha", "password": "nope-nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 on wrong password, got %d", rec.Code)
	}

	rec := srv.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "asha", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	srv.token = decode[domain.AuthResponse](t, rec).Token

	if rec := srv.do(http.MethodGet, "/v1/credits", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after login, got %d", rec.Code)
	}

	out := srv.do(http.MethodPost, "/v1/auth/logout", nil)
	if c := out.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("expected logout to expire the cookie, got %+v", c)
	}
}

func TestFlow_ExpensesAndDashboard(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:0")
	srv.signup("asha")

	rec := srv.do(http.MethodPut, "/v1/profile", map[string]any{
		"fullName": "Asha Rao", "monthlySalary": 1000, "gender": "Female",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodPost, "/v1/expenses", map[string]any{
		"amount": 250, "description": "Zomato order", "date": "2024-03-05", "paymentMethod": "UPI",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add expense: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	expenses := decode[[]domain.ExpenseEntry](t, rec)
	if len(expenses) != 1 || expenses[0].Category != "Food" {
		t.Fatalf("expected one Food expense, got %+v", expenses)
	}

	if rec := srv.do(http.MethodPost, "/v1/expenses", map[string]any{"amount": "abc"}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric amount, got %d", rec.Code)
	}

	rec = srv.do(http.MethodPost, "/v1/credits", map[string]any{"amount": 100})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add credit: expected 201, got %d", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/v1/analytics/categories", nil)
	totals := decode[[]domain.CategoryTotal](t, rec)
	if len(totals) != 1 || totals[0].Name != "Food" || totals[0].Value != 250 {
		t.Errorf("unexpected category totals %+v", totals)
	}

	rec = srv.do(http.MethodGet, "/v1/analytics/summary?year=2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	summary := decode[domain.DashboardSummary](t, rec)
	if summary.Savings.Remaining != 850 || summary.Savings.Percentage != 77 {
		t.Errorf("unexpected savings %+v", summary.Savings)
	}
	if summary.Calendar.Days != 1 || !summary.Monthly.HasData || summary.Monthly.MaxMonth != 2 {
		t.Errorf("unexpected calendar/monthly %+v %+v", summary.Calendar, summary.Monthly)
	}

	if rec := srv.do(http.MethodGet, "/v1/analytics/calendar?year=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad year, got %d", rec.Code)
	}

	id := expenses[0].ID
	rec = srv.do(http.MethodPut, "/v1/expenses/"+id, map[string]any{"amount": 300})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/v1/analytics/savings", nil)
	savings := decode[domain.Savings](t, rec)
	if savings.TotalExpenses != 300 {
		t.Errorf("expected updated total 300, got %+v", savings)
	}

	if rec := srv.do(http.MethodDelete, "/v1/expenses/unknown", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting unknown id, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodDelete, "/v1/expenses/"+id, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 deleting %s, got %d", id, rec.Code)
	}

	rec = srv.do(http.MethodGet, "/v1/profile", nil)
	profile := decode[domain.ProfileView](t, rec)
	if profile.AvatarURL != "/avatars/female.png" {
		t.Errorf("unexpected avatar %q", profile.AvatarURL)
	}
}

func TestFlow_ExportCSV(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:0")
	srv.signup("asha")

	for _, d := range []string{"2023-11-02", "2024-01-15"} {
		rec := srv.do(http.MethodPost, "/v1/expenses", map[string]any{"amount": 40, "description": "Uber " + d, "date": d})
		if rec.Code != http.StatusCreated {
			t.Fatalf("add expense: %d", rec.Code)
		}
	}

	rec := srv.do(http.MethodGet, "/v1/expenses/export?year=2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "expenses-2024.csv") {
		t.Errorf("unexpected disposition %q", cd)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(records))
	}
	if got := strings.Join(records[0], ","); got != "id,date,description,category,paymentMethod,amount" {
		t.Errorf("unexpected header %q", got)
	}
	if records[1][1] != "2024-01-15" || records[1][3] != "Transport" || records[1][5] != "40" {
		t.Errorf("unexpected row %v", records[1])
	}
}

func TestFlow_Suggestions(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		answer := ""
		if len(req.Messages) == 2 && strings.Contains(req.Messages[1].Content, "₹1000") {
			answer = "Consider a fitness tracker."
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
	}))
	defer llm.Close()

	srv := newTestServer(t, llm.URL)
	srv.signup("asha")
	srv.do(http.MethodPut, "/v1/profile", map[string]any{"fullName": "Asha", "monthlySalary": 1000, "gender": "Female"})

	rec := srv.do(http.MethodPost, "/v1/suggestions", map[string]string{"language": "en"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	s := decode[domain.Suggestion](t, rec)
	if s.Answer != "Consider a fitness tracker." || s.Fallback {
		t.Errorf("unexpected suggestion %+v", s)
	}

	// spending changes the balance, the stub answers empty, the fallback kicks in
	srv.do(http.MethodPost, "/v1/expenses", map[string]any{"amount": 10})
	rec = srv.do(http.MethodPost, "/v1/suggestions", nil)
	s = decode[domain.Suggestion](t, rec)
	if !s.Fallback || s.Answer != "Asha, FinBot couldn't generate suggestions right now." {
		t.Errorf("expected fallback, got %+v", s)
	}
}
