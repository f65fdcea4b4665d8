package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"ordersvc/internal/services"
)

// OrderItemHandler handles HTTP requests for order items.
type OrderItemHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderItemHandler creates a new OrderItemHandler.
func NewOrderItemHandler(service *services.OrderService) *OrderItemHandler {
	return &OrderItemHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order item routes with the Fiber app.
func (h *OrderItemHandler) RegisterRoutes(router fiber.Router) {
	itemRoutes := router.Group("/order_items")
	itemRoutes.Get("/", h.HandleGetItems)
	itemRoutes.Get("/:id", h.HandleGetItemByID)
	itemRoutes.Post("/", h.HandleCreateItem)
	itemRoutes.Put("/:id", h.HandleUpdateItem)
	itemRoutes.Delete("/:id", h.HandleDeleteItem)
}

// CreateItemRequest is the body of POST /order_items.
type CreateItemRequest struct {
	OrderID   uint `json:"order_id" validate:"required"`
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemRequest is the body of PUT /order_items/:id.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// HandleGetItems lists items newest first, optionally filtered by order_id.
func (h *OrderItemHandler) HandleGetItems(c *fiber.Ctx) error {
	var orderID *uint
	if raw := c.Query("order_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order_id filter"})
		}
		id := uint(parsed)
		orderID = &id
	}

	items, err := h.service.GetOrderItems(orderID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(items)
}

// HandleGetItemByID returns one order item.
func (h *OrderItemHandler) HandleGetItemByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order item id"})
	}
	item, err := h.service.GetOrderItemByID(uint(id))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(item)
}

// HandleCreateItem adds a line to an existing order.
func (h *OrderItemHandler) HandleCreateItem(c *fiber.Ctx) error {
	var req CreateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": firstValidationMsg(err)})
	}

	item, err := h.service.CreateOrderItem(req.OrderID, req.ProductID, req.Quantity, callerToken(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleUpdateItem changes a line's quantity.
func (h *OrderItemHandler) HandleUpdateItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order item id"})
	}
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid request body"})
	}

	item, err := h.service.UpdateOrderItem(uint(id), req.Quantity, callerToken(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(item)
}

// HandleDeleteItem removes a line from its order.
func (h *OrderItemHandler) HandleDeleteItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "invalid order item id"})
	}
	if err := h.service.DeleteOrderItem(uint(id)); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
