package service

import (
	"math"

	"github.com/thorhanks/MealOps/internal/model"
)

// Round1 rounds half up to one decimal place.
func Round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func RoundMacros(m model.Macros) model.Macros {
	return model.Macros{
		Protein:  Round1(m.Protein),
		Carbs:    Round1(m.Carbs),
		Fat:      Round1(m.Fat),
		Calories: Round1(m.Calories),
	}
}

// ScaleMacros scales per-100g nutrition to the given weight in grams.
func ScaleMacros(per100g model.Macros, grams float64) model.Macros {
	factor := grams / 100
	return RoundMacros(model.Macros{
		Protein:  per100g.Protein * factor,
		Carbs:    per100g.Carbs * factor,
		Fat:      per100g.Fat * factor,
		Calories: per100g.Calories * factor,
	})
}

func SumMacros(items ...model.Macros) model.Macros {
	var out model.Macros
	for _, m := range items {
		out.Protein += m.Protein
		out.Carbs += m.Carbs
		out.Fat += m.Fat
		out.Calories += m.Calories
	}
	return out
}

// MultiplyMacros multiplies without rounding.
func MultiplyMacros(m model.Macros, factor float64) model.Macros {
	return model.Macros{
		Protein:  m.Protein * factor,
		Carbs:    m.Carbs * factor,
		Fat:      m.Fat * factor,
		Calories: m.Calories * factor,
	}
}
