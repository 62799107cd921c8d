package usda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.nal.usda.gov"

// FoodData Central nutrient ids.
const (
	nutrientProtein  = 1003
	nutrientFat      = 1004
	nutrientCarbs    = 1005
	nutrientCalories = 1008
)

var (
	ErrMissingAPIKey = errors.New("no USDA API key configured")
	ErrUnauthorized  = errors.New("invalid USDA API key")
)

// Food is one search hit. Nutrient values are per 100g.
type Food struct {
	FDCID       string  `json:"fdc_id"`
	Description string  `json:"description"`
	Brand       string  `json:"brand,omitempty"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
}

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]Food, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("api_key", c.APIKey)
	u := fmt.Sprintf("%s/fdc/v1/foods/search?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create USDA request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute USDA request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read USDA response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("USDA request failed with status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode USDA response: %w", err)
	}

	out := make([]Food, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		item := Food{
			FDCID:       strconv.FormatInt(f.FDCID, 10),
			Description: strings.TrimSpace(f.Description),
			Brand:       strings.TrimSpace(f.BrandName),
		}
		if item.Brand == "" {
			item.Brand = strings.TrimSpace(f.BrandOwner)
		}
		for _, n := range f.FoodNutrients {
			switch n.id() {
			case nutrientProtein:
				item.ProteinG = n.value()
			case nutrientFat:
				item.FatG = n.value()
			case nutrientCarbs:
				item.CarbsG = n.value()
			case nutrientCalories:
				item.Calories = n.value()
			}
		}
		out = append(out, item)
	}
	return out, nil
}

type searchResponse struct {
	Foods []usdaFood `json:"foods"`
}

type usdaFood struct {
	FDCID         int64          `json:"fdcId"`
	Description   string         `json:"description"`
	BrandName     string         `json:"brandName"`
	BrandOwner    string         `json:"brandOwner"`
	FoodNutrients []usdaNutrient `json:"foodNutrients"`
}

// Search results carry nutrientId/value; food detail payloads nest the id
// under nutrient and use amount.
type usdaNutrient struct {
	NutrientID int64    `json:"nutrientId"`
	Value      *float64 `json:"value"`
	Amount     *float64 `json:"amount"`
	Nutrient   *struct {
		ID int64 `json:"id"`
	} `json:"nutrient"`
}

func (n usdaNutrient) id() int64 {
	if n.NutrientID != 0 {
		return n.NutrientID
	}
	if n.Nutrient != nil {
		return n.Nutrient.ID
	}
	return 0
}

func (n usdaNutrient) value() float64 {
	if n.Value != nil {
		return *n.Value
	}
	if n.Amount != nil {
		return *n.Amount
	}
	return 0
}
