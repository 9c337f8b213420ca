package handler

import (
	"errors"
	"net/http"

	"patapesa/internal/middleware"
	"patapesa/internal/model"
	"patapesa/internal/rewards"
	"patapesa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler serves the mock M-Pesa endpoints
type PaymentHandler struct {
	service service.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: logger}
}

// ownsAccount lets the token's owner, or an admin, act on userID.
func ownsAccount(c *gin.Context, userID string) bool {
	authID, ok := middleware.AuthUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "user ID not found in context", "")
		return false
	}
	if authID != userID && middleware.AuthRole(c) != model.RoleAdmin {
		respondError(c, http.StatusForbidden, "You can only use your own account", model.CodeForbidden)
		return false
	}
	return true
}

func (h *PaymentHandler) Withdraw(c *gin.Context) {
	var req model.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "userId, phoneNumber and a positive amount are required", model.CodeValidation)
		return
	}
	if !ownsAccount(c, req.UserID) {
		return
	}

	receipt, err := h.service.Withdraw(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to process withdrawal")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  model.StatusSuccess,
		"message": "Withdrawal processed successfully",
		"data":    receipt,
	})
}

func (h *PaymentHandler) WithdrawalStatus(c *gin.Context) {
	status, err := h.service.WithdrawalStatus(c.Request.Context(), c.Param("withdrawalId"))
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to check withdrawal status")
		return
	}
	respondOK(c, http.StatusOK, status)
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req model.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid transaction code format", model.CodeInvalidTransaction)
		return
	}
	if !ownsAccount(c, req.UserID) {
		return
	}

	verification, err := h.service.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		var vErr *rewards.ValidationError
		if errors.As(err, &vErr) && vErr.Field == "transactionCode" {
			respondError(c, http.StatusBadRequest, "Invalid transaction code format", model.CodeInvalidTransaction)
			return
		}
		respondServiceError(c, h.logger, err, "Failed to verify payment")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  model.StatusSuccess,
		"message": "Payment verification submitted successfully",
		"data":    verification,
	})
}

// RegisterPaymentRoutes registers payment routes. Moving points requires a
// token for the account named in the body.
func (h *PaymentHandler) RegisterPaymentRoutes(r gin.IRouter, authMW, userMW gin.HandlerFunc) {
	r.POST("/withdraw", authMW, userMW, h.Withdraw)
	r.GET("/withdrawal-status/:withdrawalId", h.WithdrawalStatus)
	r.POST("/verify-payment", authMW, userMW, h.VerifyPayment)
}
