package handler

import (
	"net/http"

	"patapesa/internal/middleware"
	"patapesa/internal/model"
	"patapesa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler serves registration, login and profile requests
type UserHandler struct {
	service service.UserService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: s, logger: logger}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Username, phone number and password are required", model.CodeValidation)
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to register user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  model.StatusSuccess,
		"message": "Registration successful",
		"data":    user,
		"token":   token,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Username and password are required", model.CodeValidation)
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  model.StatusSuccess,
		"message": "Login successful",
		"data":    user,
		"token":   token,
	})
}

// ListUsers is the debug listing of every account
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusSuccess, "data": users, "total": len(users)})
}

func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.service.Profile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to get profile")
		return
	}
	respondOK(c, http.StatusOK, user)
}

func (h *UserHandler) UpdatePoints(c *gin.Context) {
	var req model.UpdatePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Points value is required", model.CodeValidation)
		return
	}

	points, err := h.service.UpdatePoints(c.Request.Context(), c.Param("userId"), *req.Points)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to update points")
		return
	}
	respondOK(c, http.StatusOK, model.PointsData{Points: points})
}

func (h *UserHandler) Referrals(c *gin.Context) {
	stats, err := h.service.ReferralStats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to get referral stats")
		return
	}
	respondOK(c, http.StatusOK, stats)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Username, current password and new password are required", model.CodeValidation)
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		respondServiceError(c, h.logger, err, "Failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusSuccess, "message": "Password updated successfully"})
}

// Me returns the profile of the token's owner
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.AuthUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}
	user, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to get profile")
		return
	}
	respondOK(c, http.StatusOK, user)
}

// ActivateAdmin completes a pending (or direct) activation
func (h *UserHandler) ActivateAdmin(c *gin.Context) {
	user, err := h.service.Activate(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to activate account")
		return
	}
	respondOK(c, http.StatusOK, user)
}

// RegisterUserRoutes registers the account routes of the mirror contract and
// the authenticated /me and admin routes
func (h *UserHandler) RegisterUserRoutes(r gin.IRouter, authMW, userMW, adminMW gin.HandlerFunc) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/reset-password", h.ResetPassword)
	r.GET("/users", h.ListUsers)

	profile := r.Group("/profile/:userId")
	{
		profile.GET("", h.Profile)
		profile.PUT("/points", h.UpdatePoints)
		profile.GET("/referrals", h.Referrals)
	}

	r.GET("/me", authMW, userMW, h.Me)

	admin := r.Group("/admin")
	admin.Use(authMW, adminMW)
	{
		admin.POST("/users/:userId/activate", h.ActivateAdmin)
	}
}
