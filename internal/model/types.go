package model

import "time"

type EntryType string

const (
	EntryProduction  EntryType = "production"
	EntryConsumption EntryType = "consumption"
)

type IngredientSource string

const (
	SourceManual  IngredientSource = "manual"
	SourceUSDAAPI IngredientSource = "usda-api"
)

type Macros struct {
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Calories float64 `json:"calories"`
}

type Ingredient struct {
	Name            string           `json:"name"`
	Amount          float64          `json:"amount"`
	Unit            string           `json:"unit"`
	GramsEquivalent float64          `json:"gramsEquivalent"`
	Nutrition       Macros           `json:"nutrition"`
	Source          IngredientSource `json:"source"`
	SourceID        string           `json:"usdaId,omitempty"`
}

type Recipe struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Servings     int          `json:"servings"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions string       `json:"instructions"`
	Macros       Macros       `json:"macros"`
	Deleted      bool         `json:"deleted"`
	Created      time.Time    `json:"created"`
	Updated      time.Time    `json:"updated"`
}

// LogEntry is one immutable ledger record. RecipeID is empty for ad-hoc
// food, in which case FoodName/Amount/Unit/Macros describe what was eaten.
type LogEntry struct {
	ID       string    `json:"id"`
	Type     EntryType `json:"type"`
	RecipeID string    `json:"recipeId,omitempty"`
	Servings int       `json:"servings,omitempty"`
	FoodName string    `json:"foodName,omitempty"`
	Amount   float64   `json:"amount,omitempty"`
	Unit     string    `json:"unit,omitempty"`
	Macros   *Macros   `json:"macros,omitempty"`
	Date     time.Time `json:"date"`
	Created  time.Time `json:"created"`
}

func (e LogEntry) IsAdHoc() bool {
	return e.RecipeID == ""
}

type Settings struct {
	ID             string    `json:"id"`
	TargetCalories float64   `json:"targetCalories"`
	USDAAPIKey     string    `json:"usdaApiKey,omitempty"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
}

type IngredientCacheEntry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	NutrientsPer100g Macros    `json:"nutrients"`
	Source           string    `json:"source,omitempty"`
	SourceID         string    `json:"sourceId,omitempty"`
	CachedAt         time.Time `json:"cached"`
}

type InventoryItem struct {
	Recipe    Recipe `json:"recipe"`
	Inventory int    `json:"inventory"`
}
