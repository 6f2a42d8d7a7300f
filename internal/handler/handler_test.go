package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/middleware"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/service"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/testsupport"
)

const (
	testJWTSecret = "test-secret-for-handlers"
	testAccountID = "test-account-123"
)

type testApp struct {
	app    *fiber.App
	ledger *testsupport.MemoryLedger
	store  *testsupport.MemoryStore
	auth   *middleware.AuthMiddleware
}

// setupApp builds the routes the way main.go does, backed by in-memory
// stores so no Redis or provider credentials are needed.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	memStore := testsupport.NewMemoryStore()
	memLedger := testsupport.NewMemoryLedger()
	memLedger.SetBalance(testAccountID, 100)
	enqueuer := &testsupport.FakeEnqueuer{}
	log := zap.NewNop()
	validate := validator.New()

	jobService := service.NewJobService(memStore, memLedger, enqueuer, log, 10)
	uploadService := service.NewUploadService(nil, log) // nil storage → mock URLs
	creditService := service.NewCreditService(memLedger, log)

	jobHandler := NewJobHandler(jobService, validate)
	uploadHandler := NewUploadHandler(uploadService, validate)
	creditHandler := NewCreditHandler(creditService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Post("/uploads", uploadHandler.Targets)

	jobs := api.Group("/jobs")
	jobs.Post("/", jobHandler.Submit)
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	credits := api.Group("/credits")
	credits.Get("/", creditHandler.Balance)
	credits.Post("/confirm", creditHandler.ConfirmPurchase)

	return &testApp{app: app, ledger: memLedger, store: memStore, auth: authMiddleware}
}

func doRequest(app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) (*http.Response, error) {
	t.Helper()
	token, err := ta.auth.GenerateToken(testAccountID, "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, string(b))
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %s, got %v", code, errObj["code"])
	}
}
