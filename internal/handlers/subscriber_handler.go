package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/services"
	"github.com/gin-gonic/gin"
)

const maxImportSize = 5 << 20

// SubscriberHandler handles subscriber-related HTTP requests
type SubscriberHandler struct {
	subscribers services.SubscriberManager
}

// NewSubscriberHandler creates a new SubscriberHandler
func NewSubscriberHandler(subscribers services.SubscriberManager) *SubscriberHandler {
	return &SubscriberHandler{subscribers: subscribers}
}

// Subscribe handles POST /newsletter/subscribe
func (h *SubscriberHandler) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	// the welcome email outlives the request, so it must not hold the gin.Context
	sub, outcome, err := h.subscribers.Subscribe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if outcome == services.SubscribeReactivated {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome back! Your subscription has been reactivated", "subscriber": sub})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Successfully subscribed to the newsletter", "subscriber": sub})
}

// Unsubscribe handles GET and POST /newsletter/unsubscribe/:token
func (h *SubscriberHandler) Unsubscribe(c *gin.Context) {
	sub, err := h.subscribers.Unsubscribe(c, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "You have been unsubscribed", "email": sub.Email})
}

// ListSubscribers handles GET /newsletter/subscribers
func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	filter, ok := subscriberFilter(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	subs, pagination, err := h.subscribers.ListSubscribers(c, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs, "pagination": pagination})
}

// ExportSubscribers handles GET /newsletter/subscribers/export
func (h *SubscriberHandler) ExportSubscribers(c *gin.Context) {
	filter, ok := subscriberFilter(c)
	if !ok {
		return
	}
	// buffered so a store failure can still become a JSON error
	var buf bytes.Buffer
	if _, err := h.subscribers.ExportCSV(c, &buf, filter); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("subscribers-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ImportSubscribers handles POST /newsletter/subscribers/import
func (h *SubscriberHandler) ImportSubscribers(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "A CSV file is required in the \"file\" field")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Could not read the uploaded file")
		return
	}
	defer f.Close()

	summary, err := h.subscribers.ImportCSV(c, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeleteSubscriber handles DELETE /newsletter/subscribers/:id
func (h *SubscriberHandler) DeleteSubscriber(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	if err := h.subscribers.DeleteSubscriber(c, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscriber deleted successfully"})
}

func subscriberFilter(c *gin.Context) (models.SubscriberFilter, bool) {
	filter := models.SubscriberFilter{Search: strings.TrimSpace(c.Query("search"))}
	switch strings.ToLower(c.Query("status")) {
	case "", "all":
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	default:
		badRequest(c, "status must be active, inactive or all")
		return filter, false
	}
	return filter, true
}
