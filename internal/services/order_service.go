package services

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"ordersvc/internal/clients"
	"ordersvc/internal/models"
	"ordersvc/internal/repositories"
)

// StockChecker is the slice of the product client the mutation engine needs.
type StockChecker interface {
	CheckAvailability(productID uint, quantity int, token string) (*clients.ProductInfo, error)
}

// EventPublisher publishes order lifecycle events. A nil publisher disables
// events without changing any mutation semantics.
type EventPublisher interface {
	PublishOrderEvent(event string, payload map[string]interface{}) error
}

// OrderService handles business logic related to orders and their items.
// Every mutation runs inside one repository transaction, so a concurrent
// reader never observes an order total that disagrees with its items.
type OrderService struct {
	repo   repositories.OrderRepository
	stock  StockChecker
	events EventPublisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(repo repositories.OrderRepository, stock StockChecker, events EventPublisher) *OrderService {
	return &OrderService{
		repo:   repo,
		stock:  stock,
		events: events,
	}
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

// CreateOrderInput carries the fields needed to create an order.
type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	Items         []OrderItemInput
}

// UpdateOrderInput carries a partial order update. Nil fields are left
// untouched.
type UpdateOrderInput struct {
	Status        *string
	CustomerName  *string
	CustomerEmail *string
}

// asNotFound converts a repository not-found error into the service-level
// NotFoundError for the given resource; other errors pass through.
func asNotFound(err error, resource string, id uint) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

// publish emits a lifecycle event best-effort. Publish failures are logged
// and never surfaced: the mutation has already committed.
func (s *OrderService) publish(event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(event, payload); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", event, err)
	}
}

// GetOrders retrieves all orders, newest first.
func (s *OrderService) GetOrders() ([]models.Order, error) {
	return s.repo.GetOrders()
}

// GetOrderByID retrieves a single order with its items.
func (s *OrderService) GetOrderByID(id uint) (*models.Order, error) {
	order, err := s.repo.GetOrderByID(id)
	if err != nil {
		return nil, asNotFound(err, "order", id)
	}
	return order, nil
}

// CreateOrder creates an order with its full item set atomically. Every
// requested item is checked against the stock oracle first; if any check
// fails, nothing is persisted and the first failing item's error is
// returned. Unit price and product name are snapshots of the oracle's
// answer at creation time.
func (s *OrderService) CreateOrder(in CreateOrderInput, token string) (*models.Order, error) {
	if in.CustomerName == "" || in.CustomerEmail == "" {
		return nil, &ValidationError{Msg: "customer_name and customer_email are required"}
	}
	if len(in.Items) == 0 {
		return nil, &ValidationError{Msg: "an order requires at least one item"}
	}
	for _, item := range in.Items {
		if item.ProductID == 0 {
			return nil, &ValidationError{Msg: "product_id is required for every item"}
		}
		if item.Quantity <= 0 {
			return nil, &ValidationError{Msg: "quantity must be a positive integer"}
		}
	}

	order := &models.Order{
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Status:        models.StatusPending,
		TotalAmount:   decimal.Zero,
	}
	for _, item := range in.Items {
		product, err := s.stock.CheckAvailability(item.ProductID, item.Quantity, token)
		if err != nil {
			return nil, &StockError{Msg: err.Error()}
		}
		line := models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price.Round(2),
		}
		line.TotalPrice = line.LineTotal()
		order.TotalAmount = order.TotalAmount.Add(line.TotalPrice)
		order.Items = append(order.Items, line)
	}

	err := s.repo.Transaction(func(repo repositories.OrderRepository) error {
		return repo.CreateOrder(order)
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.created", map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"total":    order.TotalAmount,
	})
	return order, nil
}

// UpdateOrder applies a partial update to an order. Absent fields are left
// untouched; a provided status must be one of the known values.
func (s *OrderService) UpdateOrder(id uint, in UpdateOrderInput) (*models.Order, error) {
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, &ValidationError{Msg: "invalid order status: " + *in.Status}
	}
	if in.CustomerName != nil && *in.CustomerName == "" {
		return nil, &ValidationError{Msg: "customer_name cannot be empty"}
	}
	if in.CustomerEmail != nil && *in.CustomerEmail == "" {
		return nil, &ValidationError{Msg: "customer_email cannot be empty"}
	}

	var updated *models.Order
	err := s.repo.Transaction(func(repo repositories.OrderRepository) error {
		order, err := repo.GetOrderByID(id)
		if err != nil {
			return asNotFound(err, "order", id)
		}
		if in.Status != nil {
			order.Status = *in.Status
		}
		if in.CustomerName != nil {
			order.CustomerName = *in.CustomerName
		}
		if in.CustomerEmail != nil {
			order.CustomerEmail = *in.CustomerEmail
		}
		if err := repo.SaveOrder(order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.updated", map[string]interface{}{
		"order_id": updated.ID,
		"status":   updated.Status,
	})
	return updated, nil
}

// DeleteOrder removes an order and cascades to all of its items.
func (s *OrderService) DeleteOrder(id uint) error {
	err := s.repo.Transaction(func(repo repositories.OrderRepository) error {
		return repo.DeleteOrder(id)
	})
	if err != nil {
		return asNotFound(err, "order", id)
	}

	s.publish("order.deleted", map[string]interface{}{"order_id": id})
	return nil
}

// GetOrderItems retrieves items newest first, optionally filtered by order.
func (s *OrderService) GetOrderItems(orderID *uint) ([]models.OrderItem, error) {
	return s.repo.GetItems(orderID)
}

// GetOrderItemByID retrieves a single item.
func (s *OrderService) GetOrderItemByID(id uint) (*models.OrderItem, error) {
	item, err := s.repo.GetItemByID(id)
	if err != nil {
		return nil, asNotFound(err, "order item", id)
	}
	return item, nil
}

// CreateOrderItem adds a line to an existing order. The new line's total is
// added onto the parent's running total rather than re-summing every line.
func (s *OrderService) CreateOrderItem(orderID, productID uint, quantity int, token string) (*models.OrderItem, error) {
	if orderID == 0 || productID == 0 {
		return nil, &ValidationError{Msg: "order_id and product_id are required"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Msg: "quantity must be a positive integer"}
	}

	// Resolve the parent before spending a round trip on the oracle.
	if _, err := s.repo.GetOrderByID(orderID); err != nil {
		return nil, asNotFound(err, "order", orderID)
	}
	product, err := s.stock.CheckAvailability(productID, quantity, token)
	if err != nil {
		return nil, &StockError{Msg: err.Error()}
	}

	item := &models.OrderItem{
		OrderID:     orderID,
		ProductID:   productID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price.Round(2),
	}
	item.TotalPrice = item.LineTotal()

	err = s.repo.Transaction(func(repo repositories.OrderRepository) error {
		order, err := repo.GetOrderByID(orderID)
		if err != nil {
			return asNotFound(err, "order", orderID)
		}
		if err := repo.CreateItem(item); err != nil {
			return err
		}
		order.TotalAmount = order.TotalAmount.Add(item.TotalPrice)
		return repo.SaveOrder(order)
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.updated", map[string]interface{}{
		"order_id":      orderID,
		"order_item_id": item.ID,
	})
	return item, nil
}

// UpdateOrderItem changes a line's quantity. The flow is a three-state local
// transaction: the line's current contribution is debited from the order
// total, the new quantity is checked against the stock oracle, and either
// the refreshed line total is committed or the transaction rolls back and
// the debit never becomes visible. A rejected update is therefore always
// net-zero on the order total, including the invalid-quantity case (the
// debit is rolled back before the 400 is returned, same as the
// unavailable-stock branch). When the quantity is unchanged the oracle is
// not consulted and the snapshots stay as they are.
func (s *OrderService) UpdateOrderItem(id uint, newQuantity *int, token string) (*models.OrderItem, error) {
	var updated *models.OrderItem
	err := s.repo.Transaction(func(repo repositories.OrderRepository) error {
		item, err := repo.GetItemByID(id)
		if err != nil {
			return asNotFound(err, "order item", id)
		}
		order, err := repo.GetOrderByID(item.OrderID)
		if err != nil {
			return asNotFound(err, "order", item.OrderID)
		}

		// Tentative debit of the line's current contribution.
		order.TotalAmount = order.TotalAmount.Sub(item.TotalPrice)

		if newQuantity != nil && *newQuantity != item.Quantity {
			if *newQuantity <= 0 {
				return &ValidationError{Msg: "quantity must be a positive integer"}
			}
			product, err := s.stock.CheckAvailability(item.ProductID, *newQuantity, token)
			if err != nil {
				// Compensate: rolling back leaves the order total
				// exactly as it was before the debit.
				return &StockError{Msg: err.Error()}
			}
			item.Quantity = *newQuantity
			item.ProductName = product.Name
			item.UnitPrice = product.Price.Round(2)
			item.TotalPrice = item.LineTotal()
			if err := repo.SaveItem(item); err != nil {
				return err
			}
		}

		// Re-add the (possibly refreshed) line total: replace-old-with-new.
		order.TotalAmount = order.TotalAmount.Add(item.TotalPrice)
		if err := repo.SaveOrder(order); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("order.updated", map[string]interface{}{
		"order_id":      updated.OrderID,
		"order_item_id": updated.ID,
	})
	return updated, nil
}

// DeleteOrderItem removes a line and subtracts its total from the parent
// order, if the parent still exists.
func (s *OrderService) DeleteOrderItem(id uint) error {
	var orderID uint
	err := s.repo.Transaction(func(repo repositories.OrderRepository) error {
		item, err := repo.GetItemByID(id)
		if err != nil {
			return asNotFound(err, "order item", id)
		}
		orderID = item.OrderID
		if order, err := repo.GetOrderByID(item.OrderID); err == nil {
			order.TotalAmount = order.TotalAmount.Sub(item.TotalPrice)
			if err := repo.SaveOrder(order); err != nil {
				return err
			}
		}
		return repo.DeleteItem(id)
	})
	if err != nil {
		return err
	}

	s.publish("order.updated", map[string]interface{}{
		"order_id":      orderID,
		"order_item_id": id,
	})
	return nil
}
