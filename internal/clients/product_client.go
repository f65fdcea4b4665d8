package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductInfo is the slice of the remote product record this service cares
// about: the name/price used for line snapshots and the stock level at the
// time of the query.
type ProductInfo struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ErrProductNotFound is returned when the product service answers 404.
var ErrProductNotFound = errors.New("product not found")

// ErrNoToken is returned before any network call when no bearer token is
// available to forward.
var ErrNoToken = errors.New("no bearer token to forward to product service")

// InsufficientStockError reports a product whose available quantity is below
// the requested quantity.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// UpstreamError reports a non-200, non-404 response from the product service.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("product service returned status %d", e.StatusCode)
}

// TransportError wraps a connection or timeout failure reaching the product
// service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("product service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProductClient queries the remote product service for price and stock.
// Every call is a fresh read; nothing is cached, so stock answers are only
// as fresh as the last round trip.
type ProductClient struct {
	baseURL string
	client  *http.Client
}

// NewProductClient creates a client for the product service at baseURL.
func NewProductClient(baseURL string) *ProductClient {
	return &ProductClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// CheckAvailability fetches the product and decides whether the requested
// quantity can be fulfilled. The caller's bearer token is forwarded
// unchanged. This is a pure query with no side effects.
func (c *ProductClient) CheckAvailability(productID uint, quantity int, token string) (*ProductInfo, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	url := fmt.Sprintf("%s/products/%d", c.baseURL, productID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build product request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProductNotFound
	default:
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}

	var product ProductInfo
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode product response: %w", err)
	}

	if product.Quantity < quantity {
		return nil, &InsufficientStockError{Available: product.Quantity, Requested: quantity}
	}
	return &product, nil
}
