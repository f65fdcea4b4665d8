package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ordersvc/internal/clients"
	"ordersvc/internal/handlers"
	"ordersvc/internal/middleware"
	"ordersvc/internal/models"
	"ordersvc/internal/repositories"
	"ordersvc/internal/services"
)

const goodToken = "good-token"

type fakeProduct struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type testEnv struct {
	app        *fiber.App
	products   map[uint]fakeProduct
	authSrv    *httptest.Server
	productSrv *httptest.Server
}

var dbSeq int64

// setupEnv builds the full HTTP surface over an in-memory SQLite database,
// with httptest stand-ins for the product and auth services.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{products: map[uint]fakeProduct{
		1: {Name: "Laptop", Price: 19.99, Quantity: 10},
		2: {Name: "Mouse", Price: 5.50, Quantity: 50},
	}}

	env.productSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/products/"), 10, 32)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		product, ok := env.products[uint(id)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(product)
	}))
	t.Cleanup(env.productSrv.Close)

	env.authSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"user": {"username": "alice"}}`)
	}))
	t.Cleanup(env.authSrv.Close)

	dsn := fmt.Sprintf("file:integration%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	orderRepo := repositories.NewGORMOrderRepository(db)
	productClient := clients.NewProductClient(env.productSrv.URL)
	authClient := clients.NewAuthClient(env.authSrv.URL, "/auth/verify")
	orderService := services.NewOrderService(orderRepo, productClient, nil)

	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	protected := app.Group("", middleware.AuthRequired(authClient))
	handlers.NewOrderHandler(orderService).RegisterRoutes(protected)
	handlers.NewOrderItemHandler(orderService).RegisterRoutes(protected)

	env.app = app
	return env
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	assert.NoError(t, err)
	return d
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestHealthCheck(t *testing.T) {
	env := setupEnv(t)

	resp := doJSON(t, env.app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := setupEnv(t)

	// No header at all.
	resp := doJSON(t, env.app, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.NotEmpty(t, body["msg"])

	// Rejected token.
	resp = doJSON(t, env.app, http.MethodGet, "/orders", "bad-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A rejected create must leave no trace.
	resp = doJSON(t, env.app, http.MethodPost, "/orders", "", map[string]interface{}{
		"customer_name":  "Mallory",
		"customer_email": "mallory@example.com",
		"items":          []map[string]interface{}{{"product_id": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/orders", goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	decode(t, resp, &orders)
	assert.Empty(t, orders)
}

func TestAuthServiceUnavailable(t *testing.T) {
	env := setupEnv(t)
	env.authSrv.Close()

	resp := doJSON(t, env.app, http.MethodGet, "/orders", goodToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["msg"], "auth service unavailable")
}

func createOrder(t *testing.T, env *testEnv, items []map[string]interface{}) models.Order {
	t.Helper()
	resp := doJSON(t, env.app, http.MethodPost, "/orders", goodToken, map[string]interface{}{
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
		"items":          items,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	return order
}

func TestOrderLifecycle(t *testing.T) {
	env := setupEnv(t)

	order := createOrder(t, env, []map[string]interface{}{
		{"product_id": 1, "quantity": 2},
		{"product_id": 2, "quantity": 1},
	})
	assert.NotZero(t, order.ID)
	assert.Equal(t, "pending", order.Status)
	assert.Len(t, order.Items, 2)
	// 19.99*2 + 5.50*1, exact.
	assert.True(t, order.TotalAmount.Equal(dec(t, "45.48")), "got %s", order.TotalAmount)

	// Round trip: detail matches what was submitted plus oracle snapshots.
	resp := doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Order
	decode(t, resp, &fetched)
	assert.Equal(t, "Alice", fetched.CustomerName)
	assert.Equal(t, "alice@example.com", fetched.CustomerEmail)
	assert.Equal(t, "pending", fetched.Status)
	assert.Len(t, fetched.Items, 2)
	assert.Equal(t, "Laptop", fetched.Items[0].ProductName)
	assert.True(t, fetched.Items[0].UnitPrice.Equal(dec(t, "19.99")))

	// Listing is newest first.
	second := createOrder(t, env, []map[string]interface{}{{"product_id": 2, "quantity": 3}})
	resp = doJSON(t, env.app, http.MethodGet, "/orders", goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	decode(t, resp, &orders)
	assert.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, order.ID, orders[1].ID)

	// Partial update with an unknown status is rejected.
	resp = doJSON(t, env.app, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), goodToken,
		map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["msg"], "invalid order status")

	resp = doJSON(t, env.app, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), goodToken,
		map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Order
	decode(t, resp, &updated)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, "Alice", updated.CustomerName)

	// Delete cascades to the items.
	resp = doJSON(t, env.app, http.MethodDelete, fmt.Sprintf("/orders/%d", order.ID), goodToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), goodToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/order_items?order_id=%d", order.ID), goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var items []models.OrderItem
	decode(t, resp, &items)
	assert.Empty(t, items)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	env := setupEnv(t)

	resp := doJSON(t, env.app, http.MethodPost, "/orders", goodToken, map[string]interface{}{
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
		"items":          []map[string]interface{}{{"product_id": 1, "quantity": 100}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["msg"], "insufficient stock")

	// All-or-nothing: no order persisted.
	resp = doJSON(t, env.app, http.MethodGet, "/orders", goodToken, nil)
	var orders []models.Order
	decode(t, resp, &orders)
	assert.Empty(t, orders)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	env := setupEnv(t)

	resp := doJSON(t, env.app, http.MethodPost, "/orders", goodToken, map[string]interface{}{
		"customer_email": "alice@example.com",
		"items":          []map[string]interface{}{{"product_id": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodPost, "/orders", goodToken, map[string]interface{}{
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
		"items":          []map[string]interface{}{{"product_id": 1, "quantity": -2}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderItemEndpoints(t *testing.T) {
	env := setupEnv(t)
	order := createOrder(t, env, []map[string]interface{}{{"product_id": 1, "quantity": 2}}) // 39.98

	// Add a line to the existing order.
	resp := doJSON(t, env.app, http.MethodPost, "/order_items", goodToken, map[string]interface{}{
		"order_id":   order.ID,
		"product_id": 2,
		"quantity":   4,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var item models.OrderItem
	decode(t, resp, &item)
	assert.True(t, item.TotalPrice.Equal(dec(t, "22.00")), "got %s", item.TotalPrice)

	orderAfter := getOrder(t, env, order.ID)
	assert.True(t, orderAfter.TotalAmount.Equal(dec(t, "61.98")), "got %s", orderAfter.TotalAmount)

	// An invalid quantity is rejected and the total is unchanged net.
	resp = doJSON(t, env.app, http.MethodPut, fmt.Sprintf("/order_items/%d", item.ID), goodToken,
		map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	orderAfter = getOrder(t, env, order.ID)
	assert.True(t, orderAfter.TotalAmount.Equal(dec(t, "61.98")), "got %s", orderAfter.TotalAmount)

	// An unavailable quantity is rejected and the total is unchanged net.
	resp = doJSON(t, env.app, http.MethodPut, fmt.Sprintf("/order_items/%d", item.ID), goodToken,
		map[string]int{"quantity": 500})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	orderAfter = getOrder(t, env, order.ID)
	assert.True(t, orderAfter.TotalAmount.Equal(dec(t, "61.98")), "got %s", orderAfter.TotalAmount)

	// A valid change replaces the line's contribution.
	resp = doJSON(t, env.app, http.MethodPut, fmt.Sprintf("/order_items/%d", item.ID), goodToken,
		map[string]int{"quantity": 6})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &item)
	assert.Equal(t, 6, item.Quantity)
	assert.True(t, item.TotalPrice.Equal(dec(t, "33.00")))
	orderAfter = getOrder(t, env, order.ID)
	assert.True(t, orderAfter.TotalAmount.Equal(dec(t, "72.98")), "got %s", orderAfter.TotalAmount)

	// Filtered listing.
	resp = doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/order_items?order_id=%d", order.ID), goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var items []models.OrderItem
	decode(t, resp, &items)
	assert.Len(t, items, 2)

	// Delete subtracts the line's total from the parent.
	resp = doJSON(t, env.app, http.MethodDelete, fmt.Sprintf("/order_items/%d", item.ID), goodToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	orderAfter = getOrder(t, env, order.ID)
	assert.True(t, orderAfter.TotalAmount.Equal(dec(t, "39.98")), "got %s", orderAfter.TotalAmount)

	resp = doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/order_items/%d", item.ID), goodToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateOrderItem_Failures(t *testing.T) {
	env := setupEnv(t)
	order := createOrder(t, env, []map[string]interface{}{{"product_id": 1, "quantity": 1}})

	// Unknown parent order.
	resp := doJSON(t, env.app, http.MethodPost, "/order_items", goodToken, map[string]interface{}{
		"order_id":   order.ID + 100,
		"product_id": 1,
		"quantity":   1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Unknown product.
	resp = doJSON(t, env.app, http.MethodPost, "/order_items", goodToken, map[string]interface{}{
		"order_id":   order.ID,
		"product_id": 99,
		"quantity":   1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["msg"], "product not found")

	// Missing required field.
	resp = doJSON(t, env.app, http.MethodPost, "/order_items", goodToken, map[string]interface{}{
		"order_id": order.ID,
		"quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func getOrder(t *testing.T, env *testEnv, id uint) models.Order {
	t.Helper()
	resp := doJSON(t, env.app, http.MethodGet, fmt.Sprintf("/orders/%d", id), goodToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	return order
}
