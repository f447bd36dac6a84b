package handlers

import (
	"net/http"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/middleware"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// SettingsHandler handles newsletter settings-related HTTP requests
type SettingsHandler struct {
	settingsService services.SettingsManager
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsService services.SettingsManager) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// GetSettings handles GET /newsletter/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings handles PUT /newsletter/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var settings models.NewsletterSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "Invalid settings: "+err.Error())
		return
	}

	if err := h.settingsService.UpdateSettings(c, &settings, middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	current, err := h.settingsService.GetSettings(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}
