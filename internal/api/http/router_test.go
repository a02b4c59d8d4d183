package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/api/http/handlers"
	"github.com/spec-kit/walkup-queue/internal/auth"
	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/repository/sqlite"
	"github.com/spec-kit/walkup-queue/internal/service"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tickets := sqlite.NewTicketRepository(store)
	identities := sqlite.NewIdentityRepository(store)
	metrics := observability.NewMetrics()
	hub := events.NewHub(4)
	presenter := service.NewPresenter(identities)
	broadcaster := service.NewBroadcaster(service.BroadcasterDependencies{
		TicketRepo: tickets,
		Presenter:  presenter,
		Publisher:  hub,
		Metrics:    metrics,
	})
	queue := service.NewQueueService(service.QueueDependencies{
		TicketRepo:   tickets,
		IdentityRepo: identities,
		Broadcaster:  broadcaster,
		Metrics:      metrics,
	})
	imports := service.NewImportService(service.ImportDependencies{
		TicketRepo:   tickets,
		IdentityRepo: identities,
		Metrics:      metrics,
	})
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 60, BcryptCost: 4}, service.AuthDependencies{
		IdentityRepo: identities,
	})
	if _, err := authService.Seed(ctx, service.BaselineIdentities); err != nil {
		t.Fatalf("seed: %v", err)
	}

	app := fiber.New()
	logger := zap.NewNop()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("walkup-queue", "test", map[string]handlers.Pinger{"sqlite": store}),
		Metrics:        handlers.NewMetricsHandler(metrics, hub),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(queue, imports, presenter, 1<<20),
		Display:        handlers.NewDisplayHandler(hub, broadcaster, logger),
		Identities:     handlers.NewIdentityHandler(identities),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), identities),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return send(t, app, req, token)
}

func send(t *testing.T, app *fiber.App, req *nethttp.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func login(t *testing.T, app *fiber.App, id, password string) string {
	t.Helper()
	status, env := do(t, app, fiber.MethodPost, "/api/auth/login", "", map[string]string{"id": id, "password": password})
	if status != fiber.StatusOK {
		t.Fatalf("login status = %d (%+v)", status, env.Error)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.Token == "" {
		t.Fatalf("login payload: %s", env.Data)
	}
	return out.Token
}

func TestKioskToDeskFlow(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, fiber.MethodPost, "/api/tickets", "", map[string]string{
		"requester_id": "40404040",
		"location":     "ON_SITE",
		"category":     "BADGE_QR",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("submit status = %d (%+v)", status, env.Error)
	}
	var ticket struct {
		ID            int64  `json:"id"`
		RequesterName string `json:"requester_name"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if ticket.RequesterName != "Juan TEST1" || ticket.Status != "WAITING" {
		t.Fatalf("ticket = %+v", ticket)
	}

	status, env = do(t, app, fiber.MethodPost, "/api/tickets", "", map[string]string{
		"requester_id": "40404040",
		"location":     "ON_SITE",
		"category":     "INFORMATION",
	})
	if status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Fatalf("duplicate submit = %d %+v", status, env.Error)
	}

	status, env = do(t, app, fiber.MethodGet, "/api/tickets/waiting", "", nil)
	var waiting []json.RawMessage
	_ = json.Unmarshal(env.Data, &waiting)
	if status != fiber.StatusOK || len(waiting) != 1 {
		t.Fatalf("waiting = %d, %d items", status, len(waiting))
	}

	startPath := "/api/tickets/" + jsonNumber(ticket.ID) + "/start"
	if status, env = do(t, app, fiber.MethodPost, startPath, "", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous start = %d", status)
	}

	token := login(t, app, "20202020", "rrhh123")
	if status, env = do(t, app, fiber.MethodPost, startPath, token, nil); status != fiber.StatusOK {
		t.Fatalf("start = %d (%+v)", status, env.Error)
	}
	if status, _ = do(t, app, fiber.MethodGet, "/api/tickets/mine", token, nil); status != fiber.StatusOK {
		t.Fatalf("mine = %d", status)
	}
	closePath := "/api/tickets/" + jsonNumber(ticket.ID) + "/close"
	if status, env = do(t, app, fiber.MethodPost, closePath, token, map[string]string{"note": "printed"}); status != fiber.StatusOK {
		t.Fatalf("close = %d (%+v)", status, env.Error)
	}
	if status, _ = do(t, app, fiber.MethodGet, "/api/tickets/mine", token, nil); status != fiber.StatusNoContent {
		t.Fatalf("mine after close = %d", status)
	}

	status, env = do(t, app, fiber.MethodGet, "/api/tickets/summary/40404040", token, nil)
	if status != fiber.StatusOK || !strings.Contains(string(env.Data), `"total":1`) {
		t.Fatalf("summary = %d %s", status, env.Data)
	}
}

func TestIdentityLookup(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, fiber.MethodGet, "/api/identities/40404040", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("lookup status = %d (%+v)", status, env.Error)
	}
	var person map[string]any
	if err := json.Unmarshal(env.Data, &person); err != nil {
		t.Fatalf("decode person: %v", err)
	}
	if person["id"] != "40404040" || person["name"] != "Juan TEST1" {
		t.Fatalf("person = %v", person)
	}
	if len(person) != 2 {
		t.Fatalf("lookup exposes extra fields: %v", person)
	}

	status, env = do(t, app, fiber.MethodGet, "/api/identities/99999999", "", nil)
	if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown lookup = %d %+v", status, env.Error)
	}
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "10101010", "jefe123")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"unknown route", fiber.MethodGet, "/api/nothing", "", nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"bad ticket id", fiber.MethodPost, "/api/tickets/abc/start", token, nil, fiber.StatusBadRequest, "INVALID_REQUEST"},
		{"missing ticket", fiber.MethodPost, "/api/tickets/999/cancel", token, nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"bad date", fiber.MethodGet, "/api/tickets/search?date_from=10/03/2025", token, nil, fiber.StatusBadRequest, "INVALID_REQUEST"},
		{"bad token", fiber.MethodGet, "/api/auth/me", "garbage", nil, fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"worker login", fiber.MethodPost, "/api/auth/login", "", map[string]string{"id": "40404040", "password": "work123"}, fiber.StatusForbidden, "FORBIDDEN"},
		{"staff submit", fiber.MethodPost, "/api/tickets", "", map[string]string{"requester_id": "20202020", "location": "ON_SITE", "category": "BADGE_QR"}, fiber.StatusBadRequest, "INVALID_REQUEST"},
		{"websocket without upgrade", fiber.MethodGet, "/ws/queue", "", nil, fiber.StatusUpgradeRequired, "INVALID_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := do(t, app, tc.method, tc.path, tc.token, tc.body)
			if status != tc.status {
				t.Fatalf("status = %d, want %d", status, tc.status)
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("error = %+v, want code %s", env.Error, tc.code)
			}
		})
	}
}

func TestImportEndpoint(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "71220236", "talsa123")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	for i, row := range [][]any{{"DNI", "Note"}, {"40404040", "x"}, {"50505050"}, {"123"}} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	workbook, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, _ := form.CreateFormFile("file", "visits.xlsx")
	_, _ = part.Write(workbook.Bytes())
	_ = form.WriteField("location", "FIELD")
	_ = form.WriteField("category", "INFORMATION")
	_ = form.Close()

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets/import", &body)
	req.Header.Set(fiber.HeaderContentType, form.FormDataContentType())
	status, env := send(t, app, req, token)
	if status != fiber.StatusOK {
		t.Fatalf("import status = %d (%+v)", status, env.Error)
	}
	var result struct {
		Created   int `json:"created"`
		Duplicate int `json:"duplicate"`
		Skipped   int `json:"skipped"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Created != 2 || result.Duplicate != 0 || result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
	}
}

func jsonNumber(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}
