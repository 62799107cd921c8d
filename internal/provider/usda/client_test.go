package usda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchFoodsParsesNutrientsByID(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fdc/v1/foods/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "greek yogurt" || q.Get("pageSize") != "5" || q.Get("api_key") != "demo" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "foods": [
    {
      "fdcId": 12345,
      "description": "Greek Yogurt",
      "brandName": "Test Brand",
      "foodNutrients": [
        {"nutrientId": 1008, "nutrientName": "Energy", "value": 59},
        {"nutrientId": 1003, "nutrientName": "Protein", "value": 10.2},
        {"nutrientId": 1005, "nutrientName": "Carbohydrate, by difference", "value": 3.6},
        {"nutrientId": 1004, "nutrientName": "Total lipid (fat)", "value": 0.4},
        {"nutrientId": 1093, "nutrientName": "Sodium, Na", "value": 36}
      ]
    },
    {
      "fdcId": 678,
      "description": "Yogurt, plain",
      "brandOwner": "Owner Co",
      "foodNutrients": [
        {"nutrient": {"id": 1008}, "amount": 61}
      ]
    }
  ]
}`))
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	foods, err := c.SearchFoods(context.Background(), "greek yogurt", 5)
	if err != nil {
		t.Fatalf("search foods: %v", err)
	}
	if len(foods) != 2 {
		t.Fatalf("expected 2 foods, got %d", len(foods))
	}
	f := foods[0]
	if f.FDCID != "12345" || f.Brand != "Test Brand" {
		t.Fatalf("unexpected food %+v", f)
	}
	if f.Calories != 59 || f.ProteinG != 10.2 || f.CarbsG != 3.6 || f.FatG != 0.4 {
		t.Fatalf("unexpected nutrients: %+v", f)
	}
	if foods[1].Calories != 61 || foods[1].Brand != "Owner Co" {
		t.Fatalf("expected nested nutrient id and brand owner fallback, got %+v", foods[1])
	}
}

func TestSearchFoodsAuthFailures(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := &Client{APIKey: "bad", BaseURL: ts.URL, HTTPClient: ts.Client()}
		_, err := c.SearchFoods(context.Background(), "rice", 1)
		ts.Close()
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("status %d: expected ErrUnauthorized, got %v", status, err)
		}
	}

	_, err := (&Client{}).SearchFoods(context.Background(), "rice", 1)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSearchFoodsServerError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := &Client{APIKey: "demo", BaseURL: ts.URL, HTTPClient: ts.Client()}
	_, err := c.SearchFoods(context.Background(), "rice", 1)
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected generic failure, got %v", err)
	}
}
