package rating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/john2100013/kpi-review/internal/models"
)

func ptr(v float64) *float64 { return &v }

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"40%", 0.4},
		{"40", 0.4},
		{"0.4", 0.4},
		{" 25 % ", 0.25},
		{"1", 1},
		{"150", 1.5},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"-10", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseWeight(tt.in).InexactFloat64()
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompute_WeightedSum(t *testing.T) {
	score := Compute([]Input{
		{Rating: ptr(4), Weight: "40%"},
		{Rating: ptr(3), Weight: "60%"},
	})

	assert.InDelta(t, 3.4, score.Final, 1e-9)
	assert.InDelta(t, 1.0, score.TotalWeight, 1e-9)
	assert.Len(t, score.Contributions, 2)
	assert.InDelta(t, 1.6, score.Contributions[0].Score, 1e-9)
}

func TestCompute_InvalidInputsContributeZero(t *testing.T) {
	score := Compute([]Input{
		{Rating: ptr(5), Weight: "not a weight"},
		{Rating: nil, Weight: "50%"},
		{Rating: ptr(math.NaN()), Weight: "25%"},
		{Rating: ptr(math.Inf(1)), Weight: "25%"},
	})

	assert.Equal(t, 0.0, score.Final)
	assert.False(t, math.IsNaN(score.Final))
	assert.InDelta(t, 1.0, score.TotalWeight, 1e-9)
}

func TestCompute_Empty(t *testing.T) {
	score := Compute(nil)
	assert.Equal(t, 0.0, score.Final)
	assert.Equal(t, 0.0, score.TotalWeight)
}

func TestManagerAndSelfScore(t *testing.T) {
	items := []models.KPIItem{
		{Weight: "40", ManagerRating: ptr(4), EmployeeRating: ptr(5)},
		{Weight: "0.6", ManagerRating: ptr(3), EmployeeRating: ptr(4)},
	}

	assert.InDelta(t, 3.4, ManagerScore(items).Final, 1e-9)
	assert.InDelta(t, 4.4, SelfScore(items).Final, 1e-9)
}
