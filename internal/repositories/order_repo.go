package repositories

import (
	"errors"

	"ordersvc/internal/models"
)

// ErrNotFound is returned when an order or item id does not resolve.
var ErrNotFound = errors.New("record not found")

// OrderRepository defines data access for orders and their items.
//
// Transaction runs fn against a repository bound to a single database
// transaction; every mutation the service performs goes through it so a
// concurrent reader never observes a half-updated order total.
type OrderRepository interface {
	GetOrders() ([]models.Order, error)
	GetOrderByID(id uint) (*models.Order, error)
	CreateOrder(order *models.Order) error
	SaveOrder(order *models.Order) error
	DeleteOrder(id uint) error

	GetItems(orderID *uint) ([]models.OrderItem, error)
	GetItemByID(id uint) (*models.OrderItem, error)
	CreateItem(item *models.OrderItem) error
	SaveItem(item *models.OrderItem) error
	DeleteItem(id uint) error

	Transaction(fn func(repo OrderRepository) error) error
}
