package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/notify"
	"github.com/thorhanks/MealOps/internal/service"
)

// recipeRequest is the body of POST /api/recipes and PUT /api/recipes/:id.
// Ingredients carry nutrition per 100g; macros are derived from them unless
// given explicitly.
type recipeRequest struct {
	Name         string                    `json:"name"`
	Servings     int                       `json:"servings"`
	Instructions string                    `json:"instructions"`
	Ingredients  []service.IngredientInput `json:"ingredients"`
	Macros       *model.Macros             `json:"macros"`
}

type recipeResponse struct {
	model.Recipe
	Inventory int `json:"inventory"`
}

// listRecipes returns active recipes by name.
// GET /api/recipes?all=true includes soft-deleted ones.
func (h *Handler) listRecipes(c *gin.Context) {
	list := h.recipes.ListActive
	if c.Query("all") == "true" {
		list = h.recipes.ListAll
	}
	recipes, err := list(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// getRecipe accepts an id or an active recipe's name.
func (h *Handler) getRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	r, err := h.recipes.Resolve(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	inv, err := h.ledger.InventoryOf(ctx, r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipeResponse{Recipe: *r, Inventory: inv})
}

func (h *Handler) saveRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	r := &model.Recipe{
		ID:           c.Param("id"),
		Name:         req.Name,
		Servings:     req.Servings,
		Instructions: req.Instructions,
		Ingredients:  make([]model.Ingredient, 0, len(req.Ingredients)),
	}
	status := http.StatusCreated
	if r.ID != "" {
		existing, err := h.recipes.Get(ctx, r.ID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		r.Created = existing.Created
		r.Deleted = existing.Deleted
		status = http.StatusOK
	}
	for _, in := range req.Ingredients {
		ing, err := service.BuildIngredient(in)
		if err != nil {
			h.writeError(c, err)
			return
		}
		r.Ingredients = append(r.Ingredients, ing)
	}
	if req.Macros != nil {
		r.Macros = service.RoundMacros(*req.Macros)
	} else {
		m, err := service.ComputeRecipeMacros(r.Ingredients, r.Servings)
		if err != nil {
			h.writeError(c, err)
			return
		}
		r.Macros = m
	}

	if err := h.recipes.Save(ctx, r); err != nil {
		h.writeError(c, err)
		return
	}
	action := "created"
	if status == http.StatusOK {
		action = "updated"
	}
	h.broadcast("recipe", action, r.ID,
		[]string{notify.ViewRecipes, notify.ViewInventory, notify.ViewDay, notify.ViewWeek}, nil)
	c.JSON(status, r)
}

// deleteRecipe soft-deletes; the recipe's log entries are kept.
func (h *Handler) deleteRecipe(c *gin.Context) {
	id := c.Param("id")
	if err := h.recipes.SoftDelete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.broadcast("recipe", "deleted", id, []string{notify.ViewRecipes, notify.ViewInventory}, nil)
	c.Status(http.StatusNoContent)
}
