// Package rating computes weighted KPI scores.
package rating

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/john2100013/kpi-review/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Input is one item's rating and raw weight.
type Input struct {
	Rating *float64
	Weight string
}

// Contribution is the scored share of one item.
type Contribution struct {
	Rating float64 `json:"rating"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// Score is the weighted result over all items.
type Score struct {
	Final         float64        `json:"final"`
	TotalWeight   float64        `json:"total_weight"`
	Contributions []Contribution `json:"items"`
}

// ParseWeight normalizes a raw item weight to a fraction. "40%", "40" and
// "0.4" all give 0.4. Any value above 1 is read as a percentage, so "150"
// gives 1.5. Blank, unparseable and negative input gives 0.
func ParseWeight(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	if percent || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(hundred)
	}
	return d
}

// finite converts a rating to a decimal, treating nil, NaN and infinities as 0.
func finite(rating *float64) decimal.Decimal {
	if rating == nil || math.IsNaN(*rating) || math.IsInf(*rating, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*rating)
}

// Compute returns the sum of rating times normalized weight, rounded to two places.
func Compute(inputs []Input) Score {
	total := decimal.Zero
	weights := decimal.Zero
	contributions := make([]Contribution, 0, len(inputs))

	for _, in := range inputs {
		w := ParseWeight(in.Weight)
		r := finite(in.Rating)
		s := r.Mul(w)

		total = total.Add(s)
		weights = weights.Add(w)
		contributions = append(contributions, Contribution{
			Rating: r.InexactFloat64(),
			Weight: w.InexactFloat64(),
			Score:  s.Round(2).InexactFloat64(),
		})
	}

	return Score{
		Final:         total.Round(2).InexactFloat64(),
		TotalWeight:   weights.Round(4).InexactFloat64(),
		Contributions: contributions,
	}
}

// ManagerScore scores KPI items by their manager ratings.
func ManagerScore(items []models.KPIItem) Score {
	inputs := make([]Input, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, Input{Rating: item.ManagerRating, Weight: item.Weight})
	}
	return Compute(inputs)
}

// SelfScore scores KPI items by the employee's own ratings.
func SelfScore(items []models.KPIItem) Score {
	inputs := make([]Input, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, Input{Rating: item.EmployeeRating, Weight: item.Weight})
	}
	return Compute(inputs)
}
