package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/notify"
	"github.com/thorhanks/MealOps/internal/service"
)

const maxImportBytes = 32 << 20

// exportData streams the whole store as a snapshot attachment.
func (h *Handler) exportData(c *gin.Context) {
	snap, err := service.Export(c.Request.Context(), h.db)
	if err != nil {
		h.writeError(c, err)
		return
	}
	filename := fmt.Sprintf("mealops-export-%s.json", time.Now().Format(service.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, snap)
}

// importData upserts a snapshot. POST /api/import?dryRun=true validates and
// counts without writing.
func (h *Handler) importData(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		apiError(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	snap, err := service.DecodeSnapshot(data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	opts := service.ImportOptions{DryRun: c.Query("dryRun") == "true"}
	counts, err := service.Import(c.Request.Context(), h.db, snap, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !opts.DryRun {
		h.broadcast("data", "imported", "", []string{
			notify.ViewRecipes, notify.ViewInventory, notify.ViewDay, notify.ViewWeek, notify.ViewSettings,
		}, nil)
	}
	c.JSON(http.StatusOK, counts)
}
