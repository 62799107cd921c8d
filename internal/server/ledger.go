package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/notify"
	"github.com/thorhanks/MealOps/internal/service"
)

// logRequest is the body of POST /api/log. Date is YYYY-MM-DD, today,
// yesterday or empty for now. Recipe entries need recipeId and servings;
// ad-hoc consumption needs foodName and macros instead.
type logRequest struct {
	Type     model.EntryType `json:"type"`
	RecipeID string          `json:"recipeId"`
	Servings int             `json:"servings"`
	FoodName string          `json:"foodName"`
	Amount   float64         `json:"amount"`
	Unit     string          `json:"unit"`
	Macros   *model.Macros   `json:"macros"`
	Date     string          `json:"date"`
}

type logEntryResponse struct {
	Entry     model.LogEntry `json:"entry"`
	Inventory *int           `json:"inventory,omitempty"`
}

func (h *Handler) appendLog(c *gin.Context) {
	ctx := c.Request.Context()
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	entry := model.LogEntry{
		Type:     req.Type,
		Servings: req.Servings,
		FoodName: req.FoodName,
		Amount:   req.Amount,
		Unit:     req.Unit,
		Macros:   req.Macros,
	}
	if req.Date != "" {
		date, err := service.ParseDate(req.Date, time.Now())
		if err != nil {
			h.writeError(c, err)
			return
		}
		entry.Date = date
	}
	if req.RecipeID != "" {
		r, err := h.recipes.Resolve(ctx, req.RecipeID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		entry.RecipeID = r.ID
		entry.Macros = nil
	}

	if err := h.ledger.Append(ctx, &entry); err != nil {
		h.writeError(c, err)
		return
	}

	resp := logEntryResponse{Entry: entry}
	if !entry.IsAdHoc() {
		inv, err := h.ledger.InventoryOf(ctx, entry.RecipeID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		resp.Inventory = &inv
	}
	h.broadcast("log_entry", "created", entry.ID, []string{notify.ViewInventory, notify.ViewDay, notify.ViewWeek},
		map[string]any{"date": entry.Date.Format(service.DateLayout), "entryType": string(entry.Type)})
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) removeLog(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	entry, err := h.ledger.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.ledger.Remove(ctx, id); err != nil {
		h.writeError(c, err)
		return
	}
	h.broadcast("log_entry", "deleted", id, []string{notify.ViewInventory, notify.ViewDay, notify.ViewWeek},
		map[string]any{"date": entry.Date.Format(service.DateLayout)})
	c.Status(http.StatusNoContent)
}

// listLog returns entries newest first, resolved to names and macros.
// GET /api/log?from=YYYY-MM-DD&to=YYYY-MM-DD&type=consumption&recipeId=&limit=50
func (h *Handler) listLog(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()
	filter := service.LogFilter{
		Type:     model.EntryType(c.Query("type")),
		RecipeID: c.Query("recipeId"),
	}
	if v := c.Query("from"); v != "" {
		from, err := service.ParseDate(v, now)
		if err != nil {
			h.writeError(c, err)
			return
		}
		filter.From = service.StartOfDay(from)
	}
	if v := c.Query("to"); v != "" {
		to, err := service.ParseDate(v, now)
		if err != nil {
			h.writeError(c, err)
			return
		}
		filter.To = service.EndOfDay(to)
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			apiError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.ledger.List(ctx, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resolved, err := h.agg.Resolve(ctx, entries)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}
