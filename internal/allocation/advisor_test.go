package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestBandFor(t *testing.T) {
	tests := []struct {
		vix  float64
		want string
	}{
		{5, LowVolatility},
		{10, LowVolatility},
		{11, LowVolatility},
		{12, LowVolatility},
		{12.01, ModerateVolatility},
		{15, ModerateVolatility},
		{17, HighVolatility},
		{20, HighVolatility},
		{25, ExtremeVolatility},
		{30, ExtremeVolatility},
		{80, ExtremeVolatility},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.vix).Label, "vix=%v", tt.vix)
	}
}

func TestAdvise_BandRanges(t *testing.T) {
	low := Advise(11, 20, nil)
	assert.Equal(t, LowVolatility, low.Band.Label)
	assert.Equal(t, 20.0, low.Band.MinPct)
	assert.Equal(t, 20.0, low.Band.MaxPct)
	assert.Equal(t, Maintain, low.Recommendation)

	extreme := Advise(25, 50, nil)
	assert.Equal(t, ExtremeVolatility, extreme.Band.Label)
	assert.Equal(t, 80.0, extreme.Band.MinPct)
	assert.Equal(t, 100.0, extreme.Band.MaxPct)
}

func TestAdvise_Recommendation(t *testing.T) {
	tests := []struct {
		name         string
		vix, current float64
		want         string
		capPct       float64
		reducePct    float64
	}{
		{"under band", 25, 50, Increase, 50, 0},
		{"inside band", 17, 70, Maintain, 10, 0},
		{"over band", 13, 75, Decrease, 0, 15},
		{"at band max", 17, 80, Maintain, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Advise(tt.vix, tt.current, floatPtr(200000))
			assert.Equal(t, tt.want, a.Recommendation)
			assert.InDelta(t, tt.capPct, a.AdditionalCapacityPct, 1e-9)
			assert.InDelta(t, tt.reducePct, a.RequiredReductionPct, 1e-9)
			assert.InDelta(t, tt.capPct*2000, a.AdditionalCapacity, 1e-6)
			assert.InDelta(t, tt.reducePct*2000, a.RequiredReduction, 1e-6)
			assert.Equal(t, 200000.0, a.AccountValue)
		})
	}
}

func TestAdvise_NoAccountValue(t *testing.T) {
	a := Advise(13, 75, nil)
	assert.Equal(t, Decrease, a.Recommendation)
	assert.InDelta(t, 15.0, a.RequiredReductionPct, 1e-9)
	assert.Zero(t, a.RequiredReduction)
	assert.Zero(t, a.AccountValue)
}
