package risk

import (
	"math"
	"testing"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestCompute_KnownValues(t *testing.T) {
	p := DefaultModelParams()

	call := p.Compute(models.KindCall, floatPtr(100), 100, 1, 0.2)
	assert.False(t, call.Fallback)
	assert.InDelta(t, 0.6368, call.Delta, 1e-4)
	assert.InDelta(t, 0.018762, call.Gamma, 1e-5)
	assert.InDelta(t, 0.375240, call.Vega, 1e-5)
	assert.InDelta(t, 0.5596, call.ProbProfit, 1e-4)
	assert.Equal(t, 0.2, call.ImpliedVol)

	put := p.Compute(models.KindPut, floatPtr(100), 100, 1, 0.2)
	assert.InDelta(t, call.Delta-1, put.Delta, 1e-12)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
	assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	assert.InDelta(t, 1-call.ProbProfit, put.ProbProfit, 1e-12)

	// theta: shared decay term with the carry term subtracted for puts and added for calls
	decay := -100 * 0.375240 * 0.2 / 2
	carry := 0.05 * 100 * math.Exp(-0.05)
	assert.InDelta(t, (decay-carry*0.4404)/365, put.Theta, 1e-4)
	assert.InDelta(t, (decay+carry*0.5596)/365, call.Theta, 1e-4)
}

func TestCompute_DeltaBounds(t *testing.T) {
	p := DefaultModelParams()
	spots := []float64{1, 50, 99, 100, 101, 250, 10000}
	strikes := []float64{1, 50, 100, 400}
	years := []float64{1.0 / 365, 0.1, 1, 3}
	vols := []float64{0.10, 0.3, 0.75, 1.00}

	for _, s := range spots {
		for _, k := range strikes {
			for _, y := range years {
				for _, v := range vols {
					put := p.Compute(models.KindPut, floatPtr(s), k, y, v)
					call := p.Compute(models.KindCall, floatPtr(s), k, y, v)
					assert.GreaterOrEqual(t, put.Delta, -1.0)
					assert.LessOrEqual(t, put.Delta, 0.0)
					assert.GreaterOrEqual(t, call.Delta, 0.0)
					assert.LessOrEqual(t, call.Delta, 1.0)
				}
			}
		}
	}
}

func TestCompute_Fallback(t *testing.T) {
	p := DefaultModelParams()

	tests := []struct {
		name   string
		spot   *float64
		strike float64
		years  float64
		vol    float64
	}{
		{"spot unavailable", nil, 100, 0.1, 0.3},
		{"non-positive spot", floatPtr(0), 100, 0.1, 0.3},
		{"non-positive strike", floatPtr(100), 0, 0.1, 0.3},
		{"no time", floatPtr(100), 100, 0, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := p.Compute(models.KindPut, tt.spot, tt.strike, tt.years, tt.vol)
			assert.Equal(t, FallbackGreeks(models.KindPut), g)
		})
	}

	g := FallbackGreeks(models.KindCall)
	assert.Equal(t, Greeks{Delta: 0.5, Gamma: 0.01, Theta: -0.1, Vega: 0.1, ProbProfit: 0.5, ImpliedVol: 0.3, Fallback: true}, g)
	assert.Equal(t, -0.5, FallbackGreeks(models.KindPut).Delta)
}

func TestEstimateIV(t *testing.T) {
	p := DefaultModelParams()
	// 2.5 / (400 * sqrt(0.25)) * 2 = 0.025 -> clamped up
	assert.Equal(t, 0.10, p.EstimateIV(2.5, 400, 0.25))
	// 30 / (100 * 0.5) * 2 = 1.2 -> clamped down
	assert.Equal(t, 1.00, p.EstimateIV(30, 100, 0.25))
	assert.InDelta(t, 0.4, p.EstimateIV(10, 100, 0.25), 1e-12)
	assert.Equal(t, 0.10, p.EstimateIV(1, 0, 0.25))
}

func TestYearsToExpiry(t *testing.T) {
	assert.InDelta(t, 1.0/365, YearsToExpiry(0), 1e-15)
	assert.InDelta(t, 1.0/365, YearsToExpiry(1), 1e-15)
	assert.InDelta(t, 30.0/365, YearsToExpiry(30), 1e-15)
}
