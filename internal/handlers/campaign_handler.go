package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/middleware"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaigns  services.CampaignManager
	dispatcher services.CampaignDispatcher
	lifetime   context.Context
}

// NewCampaignHandler creates a new CampaignHandler. Dispatches started over
// HTTP run until lifetime is cancelled, independent of the client connection.
// A nil lifetime never cancels.
func NewCampaignHandler(campaigns services.CampaignManager, dispatcher services.CampaignDispatcher, lifetime context.Context) *CampaignHandler {
	if lifetime == nil {
		lifetime = context.Background()
	}
	return &CampaignHandler{
		campaigns:  campaigns,
		dispatcher: dispatcher,
		lifetime:   lifetime,
	}
}

// dispatchContext keeps the request's values but takes its cancellation from
// the handler lifetime, so shutdown stops a send between batches while a
// dropped client does not.
func (h *CampaignHandler) dispatchContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	stop := context.AfterFunc(h.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

type campaignRequest struct {
	Title         string   `json:"title"`
	Subject       string   `json:"subject"`
	Content       string   `json:"content"`
	HTMLContent   string   `json:"htmlContent"`
	PreviewText   string   `json:"previewText"`
	FeaturedImage string   `json:"featuredImage"`
	Tags          []string `json:"tags"`
	TargetGroups  []string `json:"targetGroups"`
}

// CreateCampaign handles POST /newsletter/campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	campaign := &models.Campaign{
		Title:         req.Title,
		Subject:       req.Subject,
		Content:       req.Content,
		HTMLContent:   req.HTMLContent,
		PreviewText:   req.PreviewText,
		FeaturedImage: req.FeaturedImage,
		Tags:          req.Tags,
		TargetGroups:  req.TargetGroups,
	}
	if err := h.campaigns.CreateCampaign(c, campaign, middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// ListCampaigns handles GET /newsletter/campaigns
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	page, limit := pageParams(c)
	filter := models.CampaignFilter{
		Status: models.CampaignStatus(strings.ToLower(c.Query("status"))),
		Search: strings.TrimSpace(c.Query("search")),
	}
	campaigns, pagination, err := h.campaigns.ListCampaigns(c, filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns, "pagination": pagination})
}

// GetCampaign handles GET /newsletter/campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	campaign, err := h.campaigns.GetCampaignByID(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign handles PUT /newsletter/campaigns/:id
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var patch models.CampaignPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	campaign, err := h.campaigns.UpdateCampaign(c, id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign handles DELETE /newsletter/campaigns/:id
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	if err := h.campaigns.DeleteCampaign(c, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign deleted successfully"})
}

// SendCampaign handles POST /newsletter/campaigns/:id/send
func (h *CampaignHandler) SendCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	ctx, cancel := h.dispatchContext(c)
	defer cancel()
	result, err := h.dispatcher.SendCampaign(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign sent", "result": result})
}

// SendCampaignTo handles POST /newsletter/campaigns/:id/send-to
func (h *CampaignHandler) SendCampaignTo(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Addresses []string `json:"addresses" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ctx, cancel := h.dispatchContext(c)
	defer cancel()
	result, err := h.dispatcher.SendCampaignToAddresses(ctx, id, req.Addresses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign sent to addresses", "result": result})
}

// ScheduleCampaign handles POST /newsletter/campaigns/:id/schedule
func (h *CampaignHandler) ScheduleCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ScheduledFor time.Time `json:"scheduledFor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "scheduledFor must be an RFC 3339 timestamp")
		return
	}
	campaign, err := h.campaigns.ScheduleCampaign(c, id, req.ScheduledFor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// CancelCampaign handles POST /newsletter/campaigns/:id/cancel
func (h *CampaignHandler) CancelCampaign(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	campaign, err := h.campaigns.CancelCampaign(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// GetCampaignStats handles GET /newsletter/campaigns/:id/stats
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	stats, err := h.campaigns.GetCampaignStats(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RecordEngagement handles POST /newsletter/campaigns/:id/stats/:metric
func (h *CampaignHandler) RecordEngagement(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	stats, err := h.campaigns.RecordEngagement(c, id, c.Param("metric"), req.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetOverview handles GET /newsletter/stats
func (h *CampaignHandler) GetOverview(c *gin.Context) {
	overview, err := h.campaigns.GetOverview(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
