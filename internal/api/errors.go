package api

import (
	"errors"
	"net/http"

	"sales-service/internal/credit"
	"sales-service/internal/domain"
	"sales-service/internal/money"
	"sales-service/internal/pricing"
	"sales-service/internal/schedule"
	"sales-service/internal/service"
	"sales-service/internal/status"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var validationErrors = []error{
	service.ErrInvalidRequest,
	money.ErrInvalidAmount,
	pricing.ErrInvalidDiscount,
	pricing.ErrInvalidQuantity,
	schedule.ErrInvalidInstallmentCount,
	schedule.ErrIncompleteSchedule,
	domain.ErrUnknownMethod,
	status.ErrInvalidDueDate,
	credit.ErrInsufficientCredit,
}

var conflictErrors = []error{
	service.ErrNotQuote,
	service.ErrNotCompleted,
	service.ErrDuplicateRequest,
	service.ErrCreditBusy,
	service.ErrInsufficientStock,
	store.ErrAlreadyPaid,
	store.ErrConflict,
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, message string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		util.GetLogger().Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(code, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
