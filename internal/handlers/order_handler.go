package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"ordersvc/internal/middleware"
	"ordersvc/internal/services"
)

// writeServiceError maps a service error onto the HTTP surface. Every error
// body has the shape {"msg": "<reason>"}.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		stockErr      *services.StockError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &stockErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": err.Error()})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"msg": err.Error()})
	default:
		log.Printf("Unhandled service error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"msg": "internal server error"})
	}
}

// firstValidationMsg renders the first failed rule as a human-readable
// reason for the error body.
func firstValidationMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		e := validationErrors[0]
		return fmt.Sprintf("field '%s' failed on the '%s' rule", e.Field(), e.Tag())
	}
	return err.Error()
}

// callerToken returns the bearer token of the authenticated caller, for
// forwarding to the product service.
func callerToken(c *fiber.Ctx) string {
	if principal := middleware.PrincipalFromCtx(c); principal != nil {
		return principal.Token
	}
	return ""
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Put("/:id", h.HandleUpdateOrder)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerName  string                   `json:"customer_name" validate:"required"`
	CustomerEmail string                   `json:"customer_email" validate:"required"`
	Items         []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItemRequest is one requested line of POST /orders.
type CreateOrderItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0"`
}

// UpdateOrderRequest is the body of PUT /orders/:id. Absent fields are left
// untouched.
type UpdateOrderRequest struct {
	Status        *string `json:"status"`
	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
}

// HandleGetOrders lists all orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrders()
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID returns one order with its items.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order id"})
	}
	order, err := h.service.GetOrderByID(uint(id))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder creates an order with its full item set.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": firstValidationMsg(err)})
	}

	in := services.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, services.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.CreateOrder(in, callerToken(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrder applies a partial update to an order.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order id"})
	}
	var req UpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid request body"})
	}

	order, err := h.service.UpdateOrder(uint(id), services.UpdateOrderInput{
		Status:        req.Status,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(order)
}

// HandleDeleteOrder deletes an order and all of its items.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order id"})
	}
	if err := h.service.DeleteOrder(uint(id)); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
