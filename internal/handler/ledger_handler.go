package handler

import (
	"fmt"
	"net/http"
	"time"

	"patapesa/internal/middleware"
	"patapesa/internal/model"
	"patapesa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LedgerHandler serves the point ledger to its owners and to admins
type LedgerHandler struct {
	service service.LedgerService
	logger  *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(s service.LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: s, logger: logger}
}

// parseLedgerFilters reads kind, date (one day), start_date, end_date and,
// for admins, user_id from the query string. Dates are YYYY-MM-DD; an end
// date covers its whole day.
func parseLedgerFilters(c *gin.Context, allowUser bool) (model.LedgerFilters, error) {
	var filters model.LedgerFilters
	if allowUser {
		if userID := c.Query("user_id"); userID != "" {
			filters.UserID = &userID
		}
	}
	if kind := c.Query("kind"); kind != "" {
		filters.Kind = &kind
	}
	if dateParam := c.Query("date"); dateParam != "" {
		parsedDate, err := time.Parse("2006-01-02", dateParam)
		if err != nil {
			return filters, fmt.Errorf("invalid date format for 'date', use YYYY-MM-DD")
		}
		endOfDay := parsedDate.Add(24*time.Hour - time.Nanosecond)
		filters.StartDate = &parsedDate
		filters.EndDate = &endOfDay
		return filters, nil
	}
	if startDateParam := c.Query("start_date"); startDateParam != "" {
		parsedDate, err := time.Parse("2006-01-02", startDateParam)
		if err != nil {
			return filters, fmt.Errorf("invalid date format for 'start_date', use YYYY-MM-DD")
		}
		filters.StartDate = &parsedDate
	}
	if endDateParam := c.Query("end_date"); endDateParam != "" {
		parsedDate, err := time.Parse("2006-01-02", endDateParam)
		if err != nil {
			return filters, fmt.Errorf("invalid date format for 'end_date', use YYYY-MM-DD")
		}
		endOfDay := parsedDate.Add(24*time.Hour - time.Nanosecond)
		filters.EndDate = &endOfDay
	}
	return filters, nil
}

func (h *LedgerHandler) GetMyLedger(c *gin.Context) {
	userID, ok := middleware.AuthUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "user ID not found in context", "")
		return
	}
	filters, err := parseLedgerFilters(c, false)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
		return
	}

	entries, err := h.service.GetUserLedger(c.Request.Context(), userID, filters)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to retrieve ledger")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusSuccess, "data": entries, "total": len(entries)})
}

func (h *LedgerHandler) GetAllEntriesAdmin(c *gin.Context) {
	filters, err := parseLedgerFilters(c, true)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
		return
	}
	entries, err := h.service.GetAllEntriesAdmin(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to retrieve ledger entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusSuccess, "data": entries, "total": len(entries)})
}

func (h *LedgerHandler) GetStatisticsAdmin(c *gin.Context) {
	filters, err := parseLedgerFilters(c, true)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
		return
	}
	stats, err := h.service.GetStatisticsAdmin(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to retrieve statistics")
		return
	}
	respondOK(c, http.StatusOK, stats)
}

func (h *LedgerHandler) ExportLedgerCSVAdmin(c *gin.Context) {
	filters, err := parseLedgerFilters(c, true)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), model.CodeValidation)
		return
	}

	csvBuffer, err := h.service.ExportLedgerCSVAdmin(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, h.logger, err, "Failed to export ledger to CSV")
		return
	}

	fileName := fmt.Sprintf("ledger_export_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "text/csv", csvBuffer.Bytes())
}

// RegisterLedgerRoutes registers ledger routes
func (h *LedgerHandler) RegisterLedgerRoutes(r gin.IRouter, authMW, userMW, adminMW gin.HandlerFunc) {
	r.GET("/me/ledger", authMW, userMW, h.GetMyLedger)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(authMW, adminMW)
	{
		adminRoutes.GET("/ledger", h.GetAllEntriesAdmin)
		adminRoutes.GET("/stats", h.GetStatisticsAdmin)
		adminRoutes.GET("/ledger/export", h.ExportLedgerCSVAdmin)
	}
}
