package purchase

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/loyalty-pay/balance_ledger/internal/middleware"
)

func newPurchaseApp(t *testing.T, balance int64) *fiber.App {
	t.Helper()
	svc, _, _ := newTestService(t, balance)
	app := fiber.New()
	app.Post("/purchases", NewHandler(svc).Create)
	return app
}

func postPurchase(t *testing.T, app *fiber.App, body string) (int, purchaseResponse) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/purchases", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var out purchaseResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHandlerCreateStatuses(t *testing.T) {
	app := newPurchaseApp(t, 500)
	body := `{"user_id":"u1","location_id":"loc1","item_id":"latte","price":300,"request_id":"h-1"}`

	status, out := postPurchase(t, app, body)
	if status != fiber.StatusCreated || out.Status != StatusCompleted || out.Balance != 200 {
		t.Fatalf("first call: %d %+v", status, out)
	}

	status, out = postPurchase(t, app, body)
	if status != fiber.StatusOK || out.Balance != 200 {
		t.Fatalf("replay: %d %+v", status, out)
	}

	status, out = postPurchase(t, app, `{"user_id":"u1","location_id":"loc1","item_id":"meal","price":500,"request_id":"h-2"}`)
	if status != fiber.StatusPaymentRequired || out.Status != StatusDenied || out.Balance != 200 || out.Message == "" {
		t.Fatalf("denied: %d %+v", status, out)
	}

	status, _ = postPurchase(t, app, `{"user_id":"u1","location_id":"loc1","item_id":"cake","price":100,"request_id":"h-1"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("mismatch: expected 409, got %d", status)
	}

	status, _ = postPurchase(t, app, `{"user_id":"u1","location_id":"loc1","item_id":"cake","price":0,"request_id":"h-3"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("invalid price: expected 400, got %d", status)
	}
}

func TestHandlerCreateUsesAuthenticatedUser(t *testing.T) {
	svc, _, _ := newTestService(t, 500)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, "u1")
		return c.Next()
	})
	app.Post("/purchases", NewHandler(svc).Create)

	status, out := postPurchase(t, app, `{"location_id":"loc1","item_id":"latte","price":100,"request_id":"auth-1"}`)
	if status != fiber.StatusCreated || out.Balance != 400 {
		t.Fatalf("expected purchase for authenticated user: %d %+v", status, out)
	}

	status, _ = postPurchase(t, app, `{"user_id":"u2","location_id":"loc1","item_id":"latte","price":100,"request_id":"auth-2"}`)
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}
