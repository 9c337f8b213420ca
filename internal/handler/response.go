package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"patapesa/internal/model"
	"patapesa/internal/rewards"
	"patapesa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": model.StatusSuccess, "data": data})
}

func respondError(c *gin.Context, status int, message, code string) {
	body := gin.H{"status": model.StatusError, "message": message}
	if code != "" {
		body["error"] = code
	}
	c.JSON(status, body)
}

// respondServiceError maps business errors onto the error envelope. Anything
// unrecognised is logged and reported as a 500 with fallback as message.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, rewards.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
	case errors.Is(err, service.ErrUserAlreadyExists):
		respondError(c, http.StatusConflict, "User already exists with this username or phone number", model.CodeDuplicateAccount)
	case errors.Is(err, service.ErrInvalidPassword):
		respondError(c, http.StatusUnauthorized, "Incorrect password for this username", model.CodeInvalidPassword)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid username or password", model.CodeInvalidCredentials)
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found", model.CodeNotFound)
	case errors.Is(err, service.ErrWithdrawalNotFound):
		respondError(c, http.StatusNotFound, "Withdrawal not found", model.CodeNotFound)
	case errors.Is(err, rewards.ErrActivationRequired):
		respondError(c, http.StatusForbidden, err.Error(), model.CodeActivationRequired)
	case errors.Is(err, rewards.ErrInsufficientBalance):
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeInsufficientFunds)
	case errors.Is(err, service.ErrTooManyAttempts):
		var limited *service.RateLimitError
		if errors.As(err, &limited) && limited.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		}
		respondError(c, http.StatusTooManyRequests, err.Error(), model.CodeTooManyAttempts)
	case errors.Is(err, service.ErrAmountBelowFee):
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
	default:
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallback, "")
	}
}
