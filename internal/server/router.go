package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/app"
	"github.com/thorhanks/MealOps/internal/notify"
	"github.com/thorhanks/MealOps/internal/service"
)

// Options configures the HTTP surface. Zero values are usable: no hub means
// no websocket endpoint, no Searcher means lookups are built from settings.
// Notifier overrides Hub as the target of change messages.
type Options struct {
	Hub      *notify.Hub
	Notifier notify.Broadcaster
	Searcher service.FoodSearcher
	Logger   *slog.Logger
}

// Handler holds shared dependencies for all route handlers.
type Handler struct {
	db       *sql.DB
	recipes  *service.RecipeStore
	ledger   *service.Ledger
	agg      *service.Aggregator
	settings *service.SettingsStore
	cache    *service.IngredientCache
	notifier notify.Broadcaster
	searcher service.FoodSearcher
	logger   *slog.Logger

	sessionsMu sync.Mutex
	sessions   map[string]*service.SearchSession
}

// NewRouter builds the gin engine serving the JSON API under /api.
func NewRouter(db *sql.DB, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		db:       db,
		recipes:  service.NewRecipeStore(db),
		ledger:   service.NewLedger(db),
		agg:      service.NewAggregator(db),
		settings: service.NewSettingsStore(db),
		cache:    service.NewIngredientCache(db),
		notifier: notify.Nop{},
		searcher: opts.Searcher,
		logger:   logger,
		sessions: make(map[string]*service.SearchSession),
	}
	switch {
	case opts.Notifier != nil:
		h.notifier = opts.Notifier
	case opts.Hub != nil:
		h.notifier = opts.Hub
	}
	if h.searcher == nil {
		h.searcher = settingsSearcher{settings: h.settings}
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())
	h.registerRoutes(router)
	if opts.Hub != nil {
		router.GET("/api/ws", gin.WrapF(notify.HandleWebSocket(opts.Hub)))
	}
	return router
}

func (h *Handler) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)

	api.GET("/recipes", h.listRecipes)
	api.POST("/recipes", h.saveRecipe)
	api.GET("/recipes/:id", h.getRecipe)
	api.PUT("/recipes/:id", h.saveRecipe)
	api.DELETE("/recipes/:id", h.deleteRecipe)

	api.GET("/log", h.listLog)
	api.POST("/log", h.appendLog)
	api.DELETE("/log/:id", h.removeLog)

	api.GET("/inventory", h.listInventory)
	api.GET("/inventory/:recipeId", h.getInventory)
	api.GET("/days/:date", h.getDay)
	api.GET("/weeks/:date", h.getWeek)
	api.GET("/report", h.getReport)

	api.GET("/settings", h.getSettings)
	api.PATCH("/settings", h.patchSettings)

	api.GET("/export", h.exportData)
	api.POST("/import", h.importData)

	api.GET("/search", h.searchFoods)
	api.DELETE("/search/:session", h.cancelSearch)
	api.GET("/ingredients/lookup", h.lookupIngredient)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without its details.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apiError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidEntry),
		errors.Is(err, service.ErrImportValidation):
		apiError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLookupAuth):
		apiError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrLookupCancelled):
		apiError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrLookupFailed):
		apiError(c, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		apiError(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) broadcast(entity, action, id string, stale []string, extra map[string]any) {
	h.notifier.Broadcast(notify.NewMessage(entity, action, id, stale, extra))
}

// settingsSearcher resolves the lookup provider per call so a USDA key
// saved in settings takes effect without a restart.
type settingsSearcher struct {
	settings *service.SettingsStore
}

func (s settingsSearcher) SearchFoods(ctx context.Context, query string, limit int) ([]service.FoodMatch, error) {
	key := os.Getenv(app.EnvUSDAAPIKey)
	if key == "" {
		current, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		key = current.USDAAPIKey
	}
	searcher, err := service.NewFoodSearcher("", key)
	if err != nil {
		return nil, err
	}
	return searcher.SearchFoods(ctx, query, limit)
}
