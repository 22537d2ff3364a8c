package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/infra/config"
	httproutes "github.com/maratoff/institute-dashboard-iam/internal/transport/http/routes"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	return httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      logger,
		RoutePolicy: usecase.DefaultRoutePolicy(),
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := testEngine(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestRouteDecisionUnauthenticated(t *testing.T) {
	r := testEngine(t)

	body := strings.NewReader(`{"path":"/dashboard"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/routes/decision", body)
	req.Header.Set("Content-Type", "application/json")

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Decision   string `json:"decision"`
		RedirectTo string `json:"redirect_to"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Decision != string(usecase.DecisionRedirectLogin) {
		t.Fatalf("expected redirect_login, got %q", resp.Decision)
	}
	if resp.RedirectTo != "/login" {
		t.Fatalf("expected /login redirect, got %q", resp.RedirectTo)
	}
}
