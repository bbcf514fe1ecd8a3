package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-storefront/internal/metrics"
	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
	"github.com/0gfoundation/0g-storefront/internal/store"
)

// Users is satisfied by store.Store.
type Users interface {
	Authenticate(ctx context.Context, email, password string) (*store.User, error)
	CreateUser(ctx context.Context, email, name, password string) (*store.User, error)
}

// Handler serves the login and registration endpoints.
type Handler struct {
	guard    *ratelimit.Guard
	users    Users
	tokens   *TokenIssuer
	validate *validator.Validate
	policy   *bluemonday.Policy
	log      *zap.Logger

	// wait blocks for the advisory delay; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func NewHandler(guard *ratelimit.Guard, users Users, tokens *TokenIssuer, log *zap.Logger) *Handler {
	return &Handler{
		guard:    guard,
		users:    users,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		policy:   bluemonday.StrictPolicy(),
		log:      log,
		wait:     Wait,
	}
}

// Register mounts the auth routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.handleLogin)
	rg.POST("/auth/register", h.handleRegister)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type authResponse struct {
	Token *Token      `json:"token,omitempty"`
	User  *store.User `json:"user"`
}

// ── Login ─────────────────────────────────────────────────────────────────────

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password"})
		return
	}

	ctx := c.Request.Context()
	ip := ClientAddress(c.Request.Header, c.Request.RemoteAddr)

	adm, err := h.guard.AdmitLogin(ctx, ip, req.Email)
	if err != nil {
		AbortAdmission(c, h.log, "login", err)
		return
	}
	metrics.ObserveAdmission("login", metrics.OutcomeAllowed)
	if err := h.wait(ctx, adm.Delay); err != nil {
		c.AbortWithStatus(http.StatusRequestTimeout)
		return
	}

	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid email or password",
			"remaining_attempts": adm.Remaining,
		})
		return
	}
	if err != nil {
		h.log.Error("login: authenticate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.guard.LoginSucceeded(ctx, ip, req.Email); err != nil {
		h.log.Warn("login: reset counters", zap.String("ip", ip), zap.Error(err))
	}

	tok, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.log.Error("login: issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.log.Info("login", zap.String("user", user.ID), zap.String("ip", ip))
	c.JSON(http.StatusOK, authResponse{Token: tok, User: user})
}

// ── Register ──────────────────────────────────────────────────────────────────

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Name = strings.TrimSpace(h.policy.Sanitize(req.Name))
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	ctx := c.Request.Context()
	ip := ClientAddress(c.Request.Header, c.Request.RemoteAddr)

	adm, err := h.guard.AdmitRegister(ctx, ip, req.Email)
	if err != nil {
		AbortAdmission(c, h.log, "register", err)
		return
	}
	metrics.ObserveAdmission("register", metrics.OutcomeAllowed)
	if err := h.wait(ctx, adm.Delay); err != nil {
		c.AbortWithStatus(http.StatusRequestTimeout)
		return
	}

	user, err := h.users.CreateUser(ctx, req.Email, req.Name, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.log.Error("register: create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.guard.RegisterSucceeded(ctx, req.Email); err != nil {
		h.log.Warn("register: reset email counter", zap.Error(err))
	}

	tok, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.log.Error("register: issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.log.Info("register", zap.String("user", user.ID), zap.String("ip", ip))
	c.JSON(http.StatusCreated, authResponse{Token: tok, User: user})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// AbortAdmission answers a refused admission: 429 with Retry-After when the
// caller is throttled, 503 when the counter store cannot be reached.
func AbortAdmission(c *gin.Context, log *zap.Logger, flow string, err error) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		metrics.ObserveAdmission(flow, metrics.OutcomeThrottled)
		c.Header("Retry-After", strconv.Itoa(exceeded.RetryAfterSeconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       exceeded.Message(),
			"retry_after": exceeded.RetryAfterSeconds(),
			"reset_time":  exceeded.ResetTime.UTC().Format(time.RFC3339),
		})
		return
	}
	metrics.ObserveAdmission(flow, metrics.OutcomeUnavailable)
	log.Error("rate limiter unavailable, refusing request", zap.String("flow", flow), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "invalid email address"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	}
	return "invalid " + field
}
