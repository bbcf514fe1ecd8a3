// Package checkout serves the basket payment flow and the order history.
package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-storefront/internal/auth"
	"github.com/0gfoundation/0g-storefront/internal/gateway"
	"github.com/0gfoundation/0g-storefront/internal/metrics"
	"github.com/0gfoundation/0g-storefront/internal/orders"
	"github.com/0gfoundation/0g-storefront/internal/payment"
	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
	"github.com/0gfoundation/0g-storefront/internal/store"
)

// Store is satisfied by store.Store.
type Store interface {
	Products(ctx context.Context, ids []string) (map[string]store.Product, error)
	Order(ctx context.Context, id string) (*store.Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]store.Order, error)
}

// Payments is satisfied by gateway.Client.
type Payments interface {
	CreatePayment(ctx context.Context, req *payment.PaymentRequest) (*gateway.PaymentResult, error)
}

// Enqueuer is satisfied by orders.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, o orders.Order) error
}

// Handler wires the checkout routes onto a Gin engine.
type Handler struct {
	guard       *ratelimit.Guard
	store       Store
	payments    Payments
	queue       Enqueuer
	callbackURL string
	validate    *validator.Validate
	policy      *bluemonday.Policy
	log         *zap.Logger
}

func NewHandler(guard *ratelimit.Guard, st Store, payments Payments, queue Enqueuer, callbackURL string, log *zap.Logger) *Handler {
	return &Handler{
		guard:       guard,
		store:       st,
		payments:    payments,
		queue:       queue,
		callbackURL: callbackURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		policy:      bluemonday.StrictPolicy(),
		log:         log,
	}
}

// Register mounts all routes. auth.Middleware should already be applied to the group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/checkout", h.handleCheckout)
	rg.GET("/orders", h.handleList)
	rg.GET("/orders/:id", h.withOwner(h.handleGet))
}

type checkoutRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	Card  cardRequest   `json:"card" validate:"required"`
	Buyer buyerRequest  `json:"buyer" validate:"required"`
}

type itemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10"`
}

type cardRequest struct {
	HolderName  string `json:"holder_name" validate:"required,max=100"`
	Number      string `json:"number" validate:"required,numeric,min=12,max=19"`
	ExpireMonth string `json:"expire_month" validate:"required,numeric,len=2"`
	ExpireYear  string `json:"expire_year" validate:"required,numeric,len=4"`
	CVC         string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

type buyerRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Surname        string `json:"surname" validate:"required,max=100"`
	GSMNumber      string `json:"gsm_number" validate:"omitempty,max=20"`
	IdentityNumber string `json:"identity_number" validate:"required,numeric,len=11"`
	Address        string `json:"address" validate:"required,max=500"`
	City           string `json:"city" validate:"required,max=100"`
	Country        string `json:"country" validate:"required,max=100"`
	ZipCode        string `json:"zip_code" validate:"omitempty,max=16"`
}

type checkoutResponse struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	PaidPrice string `json:"paid_price"`
	Currency  string `json:"currency"`
}

// ── Checkout ────────────────────────────────────────────────────────────────

func (h *Handler) handleCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(auth.ContextUserID)
	email := c.GetString(auth.ContextEmail)
	ip := auth.ClientAddress(c.Request.Header, c.Request.RemoteAddr)

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.sanitize(&req.Buyer)
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkout request"})
		return
	}

	// Malformed requests are rejected before they count as an attempt.
	if _, err := h.guard.AdmitCheckout(ctx, ip); err != nil {
		auth.AbortAdmission(c, h.log, "checkout", err)
		return
	}
	metrics.ObserveAdmission("checkout", metrics.OutcomeAllowed)

	basket, total, err := h.price(ctx, req.Items)
	if err != nil {
		var unknown unknownProductError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("checkout: load products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	orderID := uuid.NewString()
	preq := h.buildRequest(orderID, userID, email, ip, req, basket, total)

	res, err := h.payments.CreatePayment(ctx, preq)
	if err != nil {
		var declined *gateway.DeclinedError
		if errors.As(err, &declined) {
			h.log.Info("payment declined",
				zap.String("user", userID),
				zap.String("conversation", preq.ConversationID),
				zap.String("code", declined.Code),
			)
			c.JSON(http.StatusPaymentRequired, gin.H{"error": declined.Message, "code": declined.Code})
			return
		}
		h.log.Error("checkout: payment gateway", zap.String("conversation", preq.ConversationID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment service unavailable"})
		return
	}

	paid := total
	if !res.PaidPrice.IsZero() {
		paid = res.PaidPrice
	}
	o := orders.Order{
		ID:             orderID,
		UserID:         userID,
		ConversationID: preq.ConversationID,
		PaymentID:      res.PaymentID,
		Price:          total,
		PaidPrice:      paid,
		Currency:       preq.Currency,
		CreatedAt:      time.Now().UTC(),
	}
	for _, it := range basket {
		o.Items = append(o.Items, orders.Item{ProductID: it.ID, Name: it.Name, Price: it.Price})
	}
	if err := h.queue.Enqueue(ctx, o); err != nil {
		// The card is already charged; keep enough in the log to replay the order.
		h.log.Error("checkout: enqueue paid order",
			zap.String("order", o.ID),
			zap.String("payment", o.PaymentID),
			zap.String("conversation", o.ConversationID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:   orderID,
		PaymentID: res.PaymentID,
		PaidPrice: paid.StringFixed(2),
		Currency:  preq.Currency,
	})
}

type unknownProductError struct{ id string }

func (e unknownProductError) Error() string { return "unknown product " + e.id }

// price resolves the basket against the catalog. Client-supplied prices are
// never trusted.
func (h *Handler) price(ctx context.Context, items []itemRequest) ([]payment.BasketItem, decimal.Decimal, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	catalog, err := h.store.Products(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	basket := make([]payment.BasketItem, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		p, ok := catalog[it.ProductID]
		if !ok {
			return nil, decimal.Zero, unknownProductError{it.ProductID}
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		basket = append(basket, payment.BasketItem{
			ID:        p.ID,
			Name:      p.Name,
			Category1: p.Category,
			ItemType:  p.ItemType,
			Price:     line,
		})
		total = total.Add(line)
	}
	return basket, total, nil
}

func (h *Handler) buildRequest(orderID, userID, email, ip string, req checkoutRequest, basket []payment.BasketItem, total decimal.Decimal) *payment.PaymentRequest {
	b := req.Buyer
	contact := b.Name + " " + b.Surname
	addr := payment.Address{
		ContactName: contact,
		City:        b.City,
		Country:     b.Country,
		Address:     b.Address,
		ZipCode:     b.ZipCode,
	}
	return &payment.PaymentRequest{
		Locale:         payment.LocaleTR,
		ConversationID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Price:          total,
		PaidPrice:      total,
		Currency:       payment.CurrencyTRY,
		Installment:    1,
		BasketID:       orderID,
		PaymentChannel: payment.ChannelWeb,
		PaymentGroup:   payment.GroupProduct,
		CallbackURL:    h.callbackURL,
		Card: payment.PaymentCard{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpireMonth: req.Card.ExpireMonth,
			ExpireYear:  req.Card.ExpireYear,
			CVC:         req.Card.CVC,
		},
		Buyer: payment.Buyer{
			ID:                  userID,
			Name:                b.Name,
			Surname:             b.Surname,
			GSMNumber:           b.GSMNumber,
			Email:               email,
			IdentityNumber:      b.IdentityNumber,
			RegistrationAddress: b.Address,
			IP:                  ip,
			City:                b.City,
			Country:             b.Country,
			ZipCode:             b.ZipCode,
		},
		ShippingAddress: addr,
		BillingAddress:  addr,
		BasketItems:     basket,
	}
}

func (h *Handler) sanitize(b *buyerRequest) {
	for _, f := range []*string{&b.Name, &b.Surname, &b.Address, &b.City, &b.Country, &b.ZipCode, &b.GSMNumber} {
		*f = strings.TrimSpace(h.policy.Sanitize(*f))
	}
}

// ── Order history ───────────────────────────────────────────────────────────

func (h *Handler) handleList(c *gin.Context) {
	list, err := h.store.OrdersByUser(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		h.log.Error("list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if list == nil {
		list = []store.Order{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) handleGet(c *gin.Context) {
	o, _ := c.Get(orderContextKey)
	c.JSON(http.StatusOK, o)
}

const orderContextKey = "order"

// withOwner loads the order and refuses access to anyone but its owner.
// Missing and foreign orders both answer 404.
func (h *Handler) withOwner(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := h.store.Order(c.Request.Context(), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) || (err == nil && o.UserID != c.GetString(auth.ContextUserID)) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			h.log.Error("get order", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(orderContextKey, o)
		next(c)
	}
}
