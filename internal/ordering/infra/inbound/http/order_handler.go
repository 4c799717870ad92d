package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/ordelab/internal/ordering/application"
	"github.com/davicafu/ordelab/internal/ordering/domain"
)

// OrderHandler encapsula los endpoints HTTP relacionados con pedidos.
// Los comandos de escritura exigen la cabecera x-requestid: es el id de
// petición idempotente, el cliente lo genera y lo reutiliza al reintentar.
type OrderHandler struct {
	commands *application.IdentifiedOrderCommands
	service  *application.OrderService
}

func NewOrderHandler(commands *application.IdentifiedOrderCommands, service *application.OrderService) *OrderHandler {
	return &OrderHandler{commands: commands, service: service}
}

func requestIDHeader(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader("x-requestid"))
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid x-requestid header"})
		return uuid.Nil, false
	}
	return id, true
}

// ---------------- Handlers ----------------

type orderItemRequest struct {
	ProductID   int     `json:"product_id" binding:"required"`
	ProductName string  `json:"product_name" binding:"required"`
	UnitPrice   float64 `json:"unit_price" binding:"required"`
	Discount    float64 `json:"discount"`
	Units       int     `json:"units" binding:"required"`
	PictureURL  string  `json:"picture_url"`
}

type createOrderRequest struct {
	UserID             string             `json:"user_id" binding:"required"`
	UserName           string             `json:"user_name" binding:"required"`
	City               string             `json:"city" binding:"required"`
	Street             string             `json:"street" binding:"required"`
	State              string             `json:"state"`
	Country            string             `json:"country" binding:"required"`
	ZipCode            string             `json:"zip_code"`
	CardType           string             `json:"card_type" binding:"required"`
	CardNumber         string             `json:"card_number" binding:"required"`
	CardSecurityNumber string             `json:"card_security_number" binding:"required"`
	CardHolderName     string             `json:"card_holder_name" binding:"required"`
	CardExpiration     string             `json:"card_expiration" binding:"required"` // MM/YY
	Items              []orderItemRequest `json:"items" binding:"required,min=1"`
}

// CreateOrder endpoint POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	reqID, ok := requestIDHeader(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := application.CreateOrderCommand{
		UserID:   req.UserID,
		UserName: req.UserName,
		Address: domain.Address{
			Street:  req.Street,
			City:    req.City,
			State:   req.State,
			Country: req.Country,
			ZipCode: req.ZipCode,
		},
		CardType:           req.CardType,
		CardNumber:         req.CardNumber,
		CardSecurityNumber: req.CardSecurityNumber,
		CardHolderName:     req.CardHolderName,
		CardExpiration:     req.CardExpiration,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, application.OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Units:       item.Units,
			PictureURL:  item.PictureURL,
		})
	}

	ok2, err := h.commands.CreateOrder(c.Request.Context(), reqID, cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidUnits) || errors.Is(err, domain.ErrInvalidDiscount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if !ok2 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order could not be created"})
		return
	}

	c.Status(http.StatusCreated)
}

// CancelOrder endpoint PUT /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, reqID, orderID uuid.UUID) (bool, error) {
		return h.commands.CancelOrder(ctx.Request.Context(), reqID, application.CancelOrderCommand{OrderID: orderID})
	})
}

// ShipOrder endpoint PUT /orders/:id/ship
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, reqID, orderID uuid.UUID) (bool, error) {
		return h.commands.ShipOrder(ctx.Request.Context(), reqID, application.ShipOrderCommand{OrderID: orderID})
	})
}

func (h *OrderHandler) transition(c *gin.Context, run func(ctx *gin.Context, reqID, orderID uuid.UUID) (bool, error)) {
	reqID, ok := requestIDHeader(c)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	ok2, err := run(c, reqID, orderID)
	if err != nil {
		var statusErr *domain.StatusChangeError
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.As(err, &statusErr):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	if !ok2 {
		c.JSON(http.StatusConflict, gin.H{"error": "order state does not allow the transition"})
		return
	}

	c.Status(http.StatusOK)
}

// GetOrder endpoint GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}
