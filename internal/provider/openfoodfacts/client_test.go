package openfoodfacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchFoodsUsesPer100gNutriments(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi/search.pl" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("search_terms") != "peanut butter" {
			t.Errorf("unexpected search terms %q", r.URL.Query().Get("search_terms"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("expected a user agent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "products": [
    {
      "code": "0051500255162",
      "product_name": "Creamy Peanut Butter",
      "brands": "Jif",
      "nutriments": {
        "energy-kcal_100g": 588,
        "energy-kcal_serving": 190,
        "proteins_100g": "22.5",
        "carbohydrates_100g": 20,
        "fat_100g": 50
      }
    },
    {"code": "1", "product_name": "", "nutriments": {}}
  ]
}`))
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	foods, err := c.SearchFoods(context.Background(), "peanut butter", 5)
	if err != nil {
		t.Fatalf("search foods: %v", err)
	}
	if len(foods) != 1 {
		t.Fatalf("expected unnamed products to be skipped, got %d", len(foods))
	}
	f := foods[0]
	if f.Code != "0051500255162" || f.Brand != "Jif" {
		t.Fatalf("unexpected food %+v", f)
	}
	if f.Calories != 588 || f.ProteinG != 22.5 || f.CarbsG != 20 || f.FatG != 50 {
		t.Fatalf("expected per-100g values, got %+v", f)
	}
}

func TestSearchFoodsFailsOnHTTPError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := c.SearchFoods(context.Background(), "rice", 1); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}
