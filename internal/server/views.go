package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

type weekResponse struct {
	WeekStart string              `json:"weekStart"`
	Buckets   []service.DayBucket `json:"buckets"`
}

func (h *Handler) listInventory(c *gin.Context) {
	items, err := h.ledger.AllInventory(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getInventory(c *gin.Context) {
	ctx := c.Request.Context()
	r, err := h.recipes.Resolve(ctx, c.Param("recipeId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	inv, err := h.ledger.InventoryOf(ctx, r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.InventoryItem{Recipe: *r, Inventory: inv})
}

// getDay returns totals, target progress and resolved entries for one day.
// GET /api/days/2026-01-15 (or today / yesterday)
func (h *Handler) getDay(c *gin.Context) {
	date, err := service.ParseDate(c.Param("date"), time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	status, err := h.agg.DayStatus(c.Request.Context(), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// getWeek returns seven daily calorie buckets for the Sunday-starting week
// containing date. GET /api/weeks/:date?selected=YYYY-MM-DD
func (h *Handler) getWeek(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()
	anchor, err := service.ParseDate(c.Param("date"), now)
	if err != nil {
		h.writeError(c, err)
		return
	}
	selected := anchor
	if v := c.Query("selected"); v != "" {
		if selected, err = service.ParseDate(v, now); err != nil {
			h.writeError(c, err)
			return
		}
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	buckets, err := h.agg.WeeklyTrend(ctx, anchor, selected, settings.TargetCalories)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, weekResponse{
		WeekStart: service.WeekStart(anchor).Format(service.DateLayout),
		Buckets:   buckets[:],
	})
}

// getReport summarizes consumption between two dates, inclusive.
// GET /api/report?from=YYYY-MM-DD&to=YYYY-MM-DD&tolerance=0.1
func (h *Handler) getReport(c *gin.Context) {
	now := time.Now()
	to := now
	from := now.AddDate(0, 0, -6)
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = service.ParseDate(v, now); err != nil {
			h.writeError(c, err)
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = service.ParseDate(v, now); err != nil {
			h.writeError(c, err)
			return
		}
	}
	tolerance := 0.1
	if v := c.Query("tolerance"); v != "" {
		if tolerance, err = strconv.ParseFloat(v, 64); err != nil {
			apiError(c, http.StatusBadRequest, "tolerance must be a number")
			return
		}
	}
	report, err := h.agg.Range(c.Request.Context(), from, to, tolerance)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
