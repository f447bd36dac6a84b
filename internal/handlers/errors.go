package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/middleware"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondError maps a service error onto a status code and a JSON body.
func respondError(c *gin.Context, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Named("http").Error("request failed",
			logger.RequestID(c.GetString(middleware.RequestIDKey)),
			logger.Path(c.Request.URL.Path),
			logger.Err(err),
		)
	}
	c.JSON(status, gin.H{"error": message})
}

func classify(err error) (int, string) {
	var ve *apperrors.ValidationError
	var te *mailer.TransportError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrAlreadySending),
		errors.Is(err, apperrors.ErrAlreadySent),
		errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrStatusMismatch):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrNoRecipients):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Service is shutting down"
	case errors.As(err, &te), errors.Is(err, mailer.ErrNotInitialized):
		return http.StatusBadGateway, "Mail transport failed: " + err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// objectIDParam parses the :id path parameter, answering 400 when malformed.
func objectIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid ID format")
		return primitive.NilObjectID, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}
