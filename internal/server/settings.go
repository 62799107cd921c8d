package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/notify"
)

// settingsPatch holds the optional fields of PATCH /api/settings. Only
// non-nil fields are applied.
type settingsPatch struct {
	TargetCalories *float64 `json:"targetCalories"`
	USDAAPIKey     *string  `json:"usdaApiKey"`
}

// settingsResponse never echoes the stored API key.
type settingsResponse struct {
	TargetCalories float64 `json:"targetCalories"`
	HasUSDAAPIKey  bool    `json:"hasUsdaApiKey"`
}

func toSettingsResponse(s *model.Settings) settingsResponse {
	return settingsResponse{
		TargetCalories: s.TargetCalories,
		HasUSDAAPIKey:  strings.TrimSpace(s.USDAAPIKey) != "",
	}
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(s))
}

func (h *Handler) patchSettings(c *gin.Context) {
	var req settingsPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.settings.Update(c.Request.Context(), func(s *model.Settings) error {
		if req.TargetCalories != nil {
			s.TargetCalories = *req.TargetCalories
		}
		if req.USDAAPIKey != nil {
			s.USDAAPIKey = *req.USDAAPIKey
		}
		return nil
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.broadcast("settings", "updated", s.ID, []string{notify.ViewSettings, notify.ViewDay, notify.ViewWeek}, nil)
	c.JSON(http.StatusOK, toSettingsResponse(s))
}
