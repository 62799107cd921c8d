package service

import "strings"

type unitKind string

const (
	unitKindMass   unitKind = "mass"
	unitKindVolume unitKind = "volume"
)

type unitDef struct {
	kind         unitKind
	gramsPerUnit float64
}

var unitTable = map[string]unitDef{
	// mass
	"g":         {kind: unitKindMass, gramsPerUnit: 1},
	"gram":      {kind: unitKindMass, gramsPerUnit: 1},
	"grams":     {kind: unitKindMass, gramsPerUnit: 1},
	"kg":        {kind: unitKindMass, gramsPerUnit: 1000},
	"kilogram":  {kind: unitKindMass, gramsPerUnit: 1000},
	"kilograms": {kind: unitKindMass, gramsPerUnit: 1000},
	"oz":        {kind: unitKindMass, gramsPerUnit: 28.35},
	"ounce":     {kind: unitKindMass, gramsPerUnit: 28.35},
	"ounces":    {kind: unitKindMass, gramsPerUnit: 28.35},
	"lb":        {kind: unitKindMass, gramsPerUnit: 453.6},
	"lbs":       {kind: unitKindMass, gramsPerUnit: 453.6},
	"pound":     {kind: unitKindMass, gramsPerUnit: 453.6},
	"pounds":    {kind: unitKindMass, gramsPerUnit: 453.6},

	// volume, as water weight
	"cup":         {kind: unitKindVolume, gramsPerUnit: 240},
	"cups":        {kind: unitKindVolume, gramsPerUnit: 240},
	"tbsp":        {kind: unitKindVolume, gramsPerUnit: 15},
	"tablespoon":  {kind: unitKindVolume, gramsPerUnit: 15},
	"tablespoons": {kind: unitKindVolume, gramsPerUnit: 15},
	"tsp":         {kind: unitKindVolume, gramsPerUnit: 5},
	"teaspoon":    {kind: unitKindVolume, gramsPerUnit: 5},
	"teaspoons":   {kind: unitKindVolume, gramsPerUnit: 5},
	"ml":          {kind: unitKindVolume, gramsPerUnit: 1},
	"milliliter":  {kind: unitKindVolume, gramsPerUnit: 1},
	"milliliters": {kind: unitKindVolume, gramsPerUnit: 1},
	"l":           {kind: unitKindVolume, gramsPerUnit: 1000},
	"liter":       {kind: unitKindVolume, gramsPerUnit: 1000},
	"liters":      {kind: unitKindVolume, gramsPerUnit: 1000},
}

// Units with no fixed weight. Kept disjoint from unitTable.
var variableUnits = map[string]struct{}{
	"pc": {}, "pcs": {}, "piece": {}, "pieces": {},
	"each": {}, "unit": {}, "units": {},
	"small": {}, "medium": {}, "large": {},
}

type UnitOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var unitOptions = []UnitOption{
	{Value: "g", Label: "g (grams)"},
	{Value: "kg", Label: "kg (kilograms)"},
	{Value: "oz", Label: "oz (ounces)"},
	{Value: "lb", Label: "lb (pounds)"},
	{Value: "cup", Label: "cup"},
	{Value: "tbsp", Label: "tbsp (tablespoon)"},
	{Value: "tsp", Label: "tsp (teaspoon)"},
	{Value: "ml", Label: "ml (milliliters)"},
	{Value: "l", Label: "l (liters)"},
	{Value: "piece", Label: "piece/unit"},
}

// ToGrams converts amount in unit to grams. ok is false for variable units
// (piece, each, ...) and unknown units; callers then fall back to per-100g
// values as-is.
func ToGrams(amount float64, unit string) (grams float64, ok bool) {
	key := normalizeUnit(unit)
	if IsVariableUnit(key) {
		return 0, false
	}
	def, found := unitTable[key]
	if !found {
		return 0, false
	}
	return amount * def.gramsPerUnit, true
}

func HasFixedConversion(unit string) bool {
	_, ok := unitTable[normalizeUnit(unit)]
	return ok
}

func IsVariableUnit(unit string) bool {
	_, ok := variableUnits[normalizeUnit(unit)]
	return ok
}

func UnitOptions() []UnitOption {
	out := make([]UnitOption, len(unitOptions))
	copy(out, unitOptions)
	return out
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}
