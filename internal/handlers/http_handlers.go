package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sixwallet/internal/middleware"
	"sixwallet/internal/models"
	"sixwallet/internal/money"
	"sixwallet/internal/repository"
	"sixwallet/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

//go:generate mockgen -source=http_handlers.go -destination=../../test/mock_wallet_service.go -package=test WalletService,AuthService

type WalletService interface {
	Fund(ctx context.Context, ownerID uuid.UUID, amount int64, reference, description string) (uuid.UUID, error)
	Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (uuid.UUID, error)
	Transfer(ctx context.Context, fromOwnerID, toOwnerID uuid.UUID, amount int64, reference string) (uuid.UUID, error)
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	GetTransactionHistory(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*models.TransactionPage, error)
}

type AuthService interface {
	Register(ctx context.Context, name, email, phone, password string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

type Handler struct {
	wallets   WalletService
	auth      AuthService
	jwtSecret []byte
	logger    *slog.Logger
}

func NewHandler(wallets WalletService, auth AuthService, jwtSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		wallets:   wallets,
		auth:      auth,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)

	wallet := v1.Group("/wallet", middleware.RequireAuth(h.jwtSecret))
	wallet.GET("", h.GetWallet)
	wallet.POST("/fund", h.Fund)
	wallet.POST("/withdraw", h.Withdraw)
	wallet.POST("/transfer", h.Transfer)
	wallet.GET("/transactions", h.GetTransactions)
}

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"token": token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"token": token,
	})
}

func (h *Handler) GetWallet(c *gin.Context) {
	userID := callerID(c)

	wallet, err := h.wallets.GetWallet(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet": gin.H{
			"walletId": wallet.ID,
			"userId":   wallet.UserID,
			"balance":  money.FromMinorUnits(wallet.Balance),
		},
	})
}

func (h *Handler) Fund(c *gin.Context) {
	userID := callerID(c)

	var req models.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txnID, err := h.wallets.Fund(c.Request.Context(), userID, money.ToMinorUnits(req.Amount), req.Reference, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Wallet funded successfully",
		"transactionId": txnID,
	})
}

func (h *Handler) Withdraw(c *gin.Context) {
	userID := callerID(c)

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txnID, err := h.wallets.Withdraw(c.Request.Context(), userID, money.ToMinorUnits(req.Amount), req.Reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Withdrawal successful",
		"withdrawalId": txnID,
	})
}

func (h *Handler) Transfer(c *gin.Context) {
	userID := callerID(c)

	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	transferID, err := h.wallets.Transfer(c.Request.Context(), userID, req.ToUserID, money.ToMinorUnits(req.Amount), req.Reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Transfer successful",
		"transferId": transferID,
	})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	userID := callerID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.wallets.GetTransactionHistory(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	records := make([]gin.H, 0, len(result.Transactions))
	for _, txn := range result.Transactions {
		records = append(records, gin.H{
			"id":          txn.ID,
			"type":        txn.Type,
			"amount":      money.FromMinorUnits(txn.Amount),
			"reference":   txn.Reference,
			"description": txn.Description,
			"createdAt":   txn.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": records,
		"pagination":   result.Pagination,
	})
}

func callerID(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidAmount),
		errors.Is(err, repository.ErrInsufficientFunds),
		errors.Is(err, repository.ErrDuplicateReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBlacklisted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", slog.Any("err", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	}
}
