package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/service"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultSession     = "default"
	maxSessions        = 64
)

// session returns the search session for key, creating it on first use.
// Each input field on a client uses its own key so a newer query only
// supersedes searches from the same field. Once maxSessions keys are live,
// new keys share the default session until one is cancelled.
func (h *Handler) session(key string) *service.SearchSession {
	if key == "" {
		key = defaultSession
	}
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()
	if s, ok := h.sessions[key]; ok {
		return s
	}
	if len(h.sessions) >= maxSessions {
		key = defaultSession
		if s, ok := h.sessions[key]; ok {
			return s
		}
	}
	s := service.NewSearchSession(h.searcher)
	h.sessions[key] = s
	return s
}

// searchFoods queries the external nutrition providers.
// GET /api/search?q=oats&limit=10&session=ingredient-0
// A request superseded by a newer one on the same session gets 409.
func (h *Handler) searchFoods(c *gin.Context) {
	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			apiError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	items, err := h.session(c.Query("session")).Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []service.FoodMatch{}
	}
	c.JSON(http.StatusOK, items)
}

// cancelSearch aborts in-flight searches for a session and forgets it.
func (h *Handler) cancelSearch(c *gin.Context) {
	key := c.Param("session")
	h.sessionsMu.Lock()
	s, ok := h.sessions[key]
	delete(h.sessions, key)
	h.sessionsMu.Unlock()
	if ok {
		s.Cancel()
	}
	c.Status(http.StatusNoContent)
}

// lookupIngredient returns per-100g nutrition for a name, from the cache
// when possible. GET /api/ingredients/lookup?name=rolled%20oats
func (h *Handler) lookupIngredient(c *gin.Context) {
	entry, hit, err := service.LookupIngredient(c.Request.Context(), h.cache, h.searcher, c.Query("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredient": entry, "cached": hit})
}
