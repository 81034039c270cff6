package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"newsdesk_backend/middleware"
	"newsdesk_backend/models"
	"newsdesk_backend/scheduler"
	"newsdesk_backend/services/marketdata"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/settings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MarketEngine is the scheduler surface exposed to admins
type MarketEngine interface {
	Start(ctx context.Context) error
	Stop()
	Status(ctx context.Context) scheduler.Status
	UpdateIntervals(ctx context.Context, partial map[models.AssetCategory]int, updatedBy string) (map[models.AssetCategory]int, error)
	RunCategory(ctx context.Context, category models.AssetCategory) (marketdata.UpdateResult, error)
}

// QuoteService reads cached quotes and accepts scraped ones
type QuoteService interface {
	Quotes(ctx context.Context, category models.AssetCategory) ([]models.MarketQuote, error)
	Ingest(ctx context.Context, category models.AssetCategory, symbol string, q *providers.Quote) (*models.MarketQuote, error)
}

// ProviderPreferences reads and writes the provider order per category
type ProviderPreferences interface {
	Order(ctx context.Context, category models.AssetCategory) []string
	SetOrder(ctx context.Context, category models.AssetCategory, ids []string, updatedBy string) ([]string, error)
}

// StreamHandler upgrades websocket requests
type StreamHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// MarketController serves cached market data and the admin controls of the refresh engine
type MarketController struct {
	engine    MarketEngine
	quotes    QuoteService
	prefs     ProviderPreferences
	settings  marketdata.SettingsStore
	stream    StreamHandler
	providers []string
}

// MarketResponse is the envelope of every market endpoint
type MarketResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewMarketController creates a new market controller. registeredProviders is reported in the status.
func NewMarketController(engine MarketEngine, quotes QuoteService, prefs ProviderPreferences, store marketdata.SettingsStore, stream StreamHandler, registeredProviders []string) *MarketController {
	return &MarketController{
		engine:    engine,
		quotes:    quotes,
		prefs:     prefs,
		settings:  store,
		stream:    stream,
		providers: registeredProviders,
	}
}

// RegisterPublicRoutes registers read-only market routes
func (ctrl *MarketController) RegisterPublicRoutes(api *gin.RouterGroup) {
	market := api.Group("/market")
	{
		market.GET("/:category/quotes", ctrl.GetQuotes)
		market.GET("/stream", ctrl.Stream)
	}
}

// RegisterAdminRoutes registers the engine controls. The group must already be authenticated.
func (ctrl *MarketController) RegisterAdminRoutes(admin *gin.RouterGroup) {
	market := admin.Group("/market")
	{
		market.GET("/status", ctrl.GetStatus)
		market.POST("/start", ctrl.Start)
		market.POST("/stop", ctrl.Stop)
		market.PUT("/intervals", ctrl.UpdateIntervals)
		market.POST("/update/:category", ctrl.UpdateCategory)
		market.GET("/providers/:category", ctrl.GetProviders)
		market.PUT("/providers/:category", ctrl.SetProviders)
		market.PUT("/maintenance", ctrl.SetMaintenance)
	}
}

// RegisterIngestRoute registers the scraper callback on an authenticated group
func (ctrl *MarketController) RegisterIngestRoute(group *gin.RouterGroup) {
	group.POST("/market/ingest", ctrl.Ingest)
}

// GetQuotes returns the cached quotes of a category
// GET /api/v1/market/indices/quotes
func (ctrl *MarketController) GetQuotes(c *gin.Context) {
	category, ok := ctrl.category(c)
	if !ok {
		return
	}

	quotes, err := ctrl.quotes.Quotes(c.Request.Context(), category)
	if err != nil {
		log.Error().Err(err).Str("category", string(category)).Msg("failed to load quotes")
		ctrl.errorResponse(c, http.StatusInternalServerError, "Failed to load quotes")
		return
	}

	ctrl.successResponse(c, quotes, gin.H{
		"category":             category,
		"count":                len(quotes),
		"stale_window_minutes": int(marketdata.StaleWindow(category).Minutes()),
	})
}

// Stream upgrades to the live quote websocket
// GET /api/v1/market/stream
func (ctrl *MarketController) Stream(c *gin.Context) {
	if ctrl.stream == nil {
		ctrl.errorResponse(c, http.StatusServiceUnavailable, "Stream not available")
		return
	}
	ctrl.stream.ServeWS(c.Writer, c.Request)
}

// GetStatus returns the scheduler state
// GET /api/v1/admin/market/status
func (ctrl *MarketController) GetStatus(c *gin.Context) {
	windows := make(map[models.AssetCategory]int, len(models.AllCategories))
	for category, window := range marketdata.StaleWindows() {
		windows[category] = int(window.Minutes())
	}
	ctrl.successResponse(c, ctrl.engine.Status(c.Request.Context()), gin.H{
		"stale_windows_minutes": windows,
		"providers":             ctrl.providers,
	})
}

// Start arms the scheduler
// POST /api/v1/admin/market/start
func (ctrl *MarketController) Start(c *gin.Context) {
	if err := ctrl.engine.Start(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("failed to start market scheduler")
		ctrl.errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("by", middleware.GetUserEmailFromContext(c)).Msg("market scheduler started by admin")
	ctrl.successResponse(c, ctrl.engine.Status(c.Request.Context()), nil)
}

// Stop clears the scheduler timers
// POST /api/v1/admin/market/stop
func (ctrl *MarketController) Stop(c *gin.Context) {
	ctrl.engine.Stop()
	log.Info().Str("by", middleware.GetUserEmailFromContext(c)).Msg("market scheduler stopped by admin")
	ctrl.successResponse(c, ctrl.engine.Status(c.Request.Context()), nil)
}

// UpdateIntervals persists new cadences. Restart the scheduler for them to take effect.
// PUT /api/v1/admin/market/intervals {"crypto": 1, "indices": 10}
func (ctrl *MarketController) UpdateIntervals(c *gin.Context) {
	var body map[string]int
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		ctrl.errorResponse(c, http.StatusBadRequest, "Body must map categories to minutes")
		return
	}

	partial := make(map[models.AssetCategory]int, len(body))
	for raw, minutes := range body {
		category, err := models.ParseCategory(raw)
		if err != nil {
			ctrl.errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		if minutes < 1 || minutes > scheduler.MaxIntervalMinutes {
			ctrl.errorResponse(c, http.StatusBadRequest,
				"Interval for "+string(category)+" must be between 1 and "+strconv.Itoa(scheduler.MaxIntervalMinutes)+" minutes")
			return
		}
		partial[category] = minutes
	}

	intervals, err := ctrl.engine.UpdateIntervals(c.Request.Context(), partial, middleware.GetUserEmailFromContext(c))
	if err != nil {
		log.Error().Err(err).Msg("failed to update market intervals")
		ctrl.errorResponse(c, http.StatusInternalServerError, "Failed to update intervals")
		return
	}
	ctrl.successResponse(c, intervals, gin.H{"restart_required": ctrl.engine.Status(c.Request.Context()).IsRunning})
}

// UpdateCategory runs one category now
// POST /api/v1/admin/market/update/crypto
func (ctrl *MarketController) UpdateCategory(c *gin.Context) {
	category, ok := ctrl.category(c)
	if !ok {
		return
	}

	result, err := ctrl.engine.RunCategory(c.Request.Context(), category)
	if err != nil {
		log.Error().Err(err).Str("category", string(category)).Msg("manual update failed")
		ctrl.errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	ctrl.successResponse(c, result, nil)
}

// GetProviders returns the effective provider order
// GET /api/v1/admin/market/providers/indices
func (ctrl *MarketController) GetProviders(c *gin.Context) {
	category, ok := ctrl.category(c)
	if !ok {
		return
	}
	ctrl.successResponse(c, ctrl.prefs.Order(c.Request.Context(), category), gin.H{
		"defaults": marketdata.DefaultOrder(category),
	})
}

// SetProviders replaces the provider order
// PUT /api/v1/admin/market/providers/indices {"providers": ["fmp","finnhub"]}
func (ctrl *MarketController) SetProviders(c *gin.Context) {
	category, ok := ctrl.category(c)
	if !ok {
		return
	}

	var body struct {
		Providers []string `json:"providers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		ctrl.errorResponse(c, http.StatusBadRequest, "providers is required")
		return
	}

	saved, err := ctrl.prefs.SetOrder(c.Request.Context(), category, body.Providers, middleware.GetUserEmailFromContext(c))
	if err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) || errors.Is(err, marketdata.ErrEmptyOrder) {
			ctrl.errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("category", string(category)).Msg("failed to save provider order")
		ctrl.errorResponse(c, http.StatusInternalServerError, "Failed to save provider order")
		return
	}
	ctrl.successResponse(c, saved, nil)
}

// SetMaintenance toggles the global maintenance flag
// PUT /api/v1/admin/market/maintenance {"enabled": true}
func (ctrl *MarketController) SetMaintenance(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		ctrl.errorResponse(c, http.StatusBadRequest, "enabled is required")
		return
	}

	meta := settings.Meta{
		Description: "Suspends scheduled market data refreshes",
		Group:       "system",
		UpdatedBy:   middleware.GetUserEmailFromContext(c),
	}
	if err := ctrl.settings.Upsert(c.Request.Context(), settings.KeyMaintenanceMode, strconv.FormatBool(*body.Enabled), meta); err != nil {
		log.Error().Err(err).Msg("failed to save maintenance flag")
		ctrl.errorResponse(c, http.StatusInternalServerError, "Failed to save maintenance flag")
		return
	}
	log.Info().Bool("enabled", *body.Enabled).Str("by", meta.UpdatedBy).Msg("maintenance mode changed")
	ctrl.successResponse(c, gin.H{"maintenance_mode": *body.Enabled}, nil)
}

// IngestRequest is a quote delivered by the scraper
type IngestRequest struct {
	Category      string     `json:"category" binding:"required"`
	Symbol        string     `json:"symbol" binding:"required"`
	Value         *float64   `json:"value" binding:"required"`
	PreviousClose *float64   `json:"previous_close"`
	Change        *float64   `json:"change"`
	ChangePercent *float64   `json:"change_percent"`
	High          *float64   `json:"high"`
	Low           *float64   `json:"low"`
	Currency      string     `json:"currency"`
	Exchange      string     `json:"exchange"`
	Timestamp     *time.Time `json:"timestamp"`
	Source        string     `json:"source"`
}

// Ingest stores a scraped quote
// POST /api/v1/market/ingest
func (ctrl *MarketController) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.errorResponse(c, http.StatusBadRequest, "category, symbol and value are required")
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		ctrl.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	q := &providers.Quote{
		Symbol:        req.Symbol,
		Value:         *req.Value,
		PreviousClose: req.PreviousClose,
		Change:        req.Change,
		ChangePercent: req.ChangePercent,
		High:          req.High,
		Low:           req.Low,
		Currency:      req.Currency,
		Exchange:      req.Exchange,
		Source:        req.Source,
	}
	if req.Timestamp != nil {
		q.Timestamp = req.Timestamp.UTC()
	}

	stored, err := ctrl.quotes.Ingest(c.Request.Context(), category, req.Symbol, q)
	switch {
	case errors.Is(err, marketdata.ErrAssetNotFound):
		ctrl.errorResponse(c, http.StatusNotFound, "Unknown or inactive symbol: "+req.Symbol)
		return
	case errors.Is(err, marketdata.ErrInvalidQuote):
		ctrl.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("symbol", req.Symbol).Msg("failed to ingest scraped quote")
		ctrl.errorResponse(c, http.StatusInternalServerError, "Failed to store quote")
		return
	}
	ctrl.successResponse(c, stored, nil)
}

func (ctrl *MarketController) category(c *gin.Context) (models.AssetCategory, bool) {
	category, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		ctrl.errorResponse(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return category, true
}

func (ctrl *MarketController) successResponse(c *gin.Context, data interface{}, meta interface{}) {
	resp := MarketResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if meta != nil {
		resp.Meta = meta
	}
	c.JSON(http.StatusOK, resp)
}

func (ctrl *MarketController) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, MarketResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
