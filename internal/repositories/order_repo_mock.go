package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ordersvc/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository,
// used by unit tests and for running the service without a database.
type MockOrderRepository struct {
	orders    map[uint]models.Order
	items     map[uint]models.OrderItem
	nextOrder uint
	nextItem  uint
	mu        sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:    make(map[uint]models.Order),
		items:     make(map[uint]models.OrderItem),
		nextOrder: 1,
		nextItem:  1,
	}
}

func (r *MockOrderRepository) itemsOf(orderID uint) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range r.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// GetOrders returns all orders with their items, newest first.
func (r *MockOrderRepository) GetOrders() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		order.Items = r.itemsOf(order.ID)
		orderList = append(orderList, order)
	}
	sort.Slice(orderList, func(i, j int) bool { return orderList[i].ID > orderList[j].ID })
	return orderList, nil
}

// GetOrderByID returns an order with its items.
func (r *MockOrderRepository) GetOrderByID(id uint) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	order.Items = r.itemsOf(id)
	return &order, nil
}

// CreateOrder adds a new order and any items attached to it.
func (r *MockOrderRepository) CreateOrder(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextOrder
	r.nextOrder++
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = r.nextItem
		r.nextItem++
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = time.Now()
		order.Items[i].UpdatedAt = time.Now()
		r.items[order.Items[i].ID] = order.Items[i]
	}
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

// SaveOrder replaces an existing order.
func (r *MockOrderRepository) SaveOrder(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("order %d: %w", order.ID, ErrNotFound)
	}
	order.UpdatedAt = time.Now()
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

// DeleteOrder removes an order and cascades to its items.
func (r *MockOrderRepository) DeleteOrder(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	delete(r.orders, id)
	for itemID, item := range r.items {
		if item.OrderID == id {
			delete(r.items, itemID)
		}
	}
	return nil
}

// GetItems returns items newest first, optionally filtered by order id.
func (r *MockOrderRepository) GetItems(orderID *uint) ([]models.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	itemList := make([]models.OrderItem, 0, len(r.items))
	for _, item := range r.items {
		if orderID != nil && item.OrderID != *orderID {
			continue
		}
		itemList = append(itemList, item)
	}
	sort.Slice(itemList, func(i, j int) bool { return itemList[i].ID > itemList[j].ID })
	return itemList, nil
}

// GetItemByID returns a single item.
func (r *MockOrderRepository) GetItemByID(id uint) (*models.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("order item %d: %w", id, ErrNotFound)
	}
	return &item, nil
}

// CreateItem adds a new item.
func (r *MockOrderRepository) CreateItem(item *models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.nextItem
	r.nextItem++
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

// SaveItem replaces an existing item.
func (r *MockOrderRepository) SaveItem(item *models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return fmt.Errorf("order item %d: %w", item.ID, ErrNotFound)
	}
	item.UpdatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

// DeleteItem removes a single item.
func (r *MockOrderRepository) DeleteItem(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("order item %d: %w", id, ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

// Transaction runs fn against the same in-memory store. The mock offers no
// isolation; it exists so services can be exercised without a database.
func (r *MockOrderRepository) Transaction(fn func(repo OrderRepository) error) error {
	return fn(r)
}
