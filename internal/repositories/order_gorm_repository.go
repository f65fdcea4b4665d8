package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ordersvc/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetOrders retrieves all orders with their items, newest first.
func (r *GORMOrderRepository) GetOrders() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, nil
}

// GetOrderByID retrieves a single order with its items.
func (r *GORMOrderRepository) GetOrderByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return &order, nil
}

// CreateOrder persists a new order together with any items attached to it.
func (r *GORMOrderRepository) CreateOrder(order *models.Order) error {
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// SaveOrder updates all fields of an existing order.
func (r *GORMOrderRepository) SaveOrder(order *models.Order) error {
	res := r.db.Omit("Items").Save(order)
	if res.Error != nil {
		return fmt.Errorf("failed to save order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", order.ID, ErrNotFound)
	}
	return nil
}

// DeleteOrder removes an order and all of its items.
func (r *GORMOrderRepository) DeleteOrder(id uint) error {
	res := r.db.Delete(&models.Order{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	// Cascade explicitly rather than relying on driver-level FK enforcement.
	if err := r.db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete items of order %d: %w", id, err)
	}
	return nil
}

// GetItems retrieves items newest first, optionally filtered by order id.
func (r *GORMOrderRepository) GetItems(orderID *uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	query := r.db.Order("id DESC")
	if orderID != nil {
		query = query.Where("order_id = ?", *orderID)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

// GetItemByID retrieves a single order item.
func (r *GORMOrderRepository) GetItemByID(id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order item %d: %w", id, err)
	}
	return &item, nil
}

// CreateItem persists a new order item.
func (r *GORMOrderRepository) CreateItem(item *models.OrderItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

// SaveItem updates all fields of an existing order item.
func (r *GORMOrderRepository) SaveItem(item *models.OrderItem) error {
	res := r.db.Save(item)
	if res.Error != nil {
		return fmt.Errorf("failed to save order item %d: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order item %d: %w", item.ID, ErrNotFound)
	}
	return nil
}

// DeleteItem removes a single order item.
func (r *GORMOrderRepository) DeleteItem(id uint) error {
	res := r.db.Delete(&models.OrderItem{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order item %d: %w", id, ErrNotFound)
	}
	return nil
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *GORMOrderRepository) Transaction(fn func(repo OrderRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMOrderRepository(tx))
	})
}
