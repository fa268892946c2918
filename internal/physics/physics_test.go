package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kerf/internal/tables"
)

func records(t *testing.T) (tables.Material, tables.Laser, tables.Pair) {
	t.Helper()
	s, err := tables.Embedded()
	require.NoError(t, err)
	m, ok := s.Material("mild_steel")
	require.True(t, ok)
	l, ok := s.Laser(tables.LaserFiber)
	require.True(t, ok)
	p, ok := s.Pair("mild_steel", tables.GasOxygen)
	require.True(t, ok)
	return m, l, p
}

func TestReferenceMaterialDepth(t *testing.T) {
	m, l, _ := records(t)
	// Mild steel on a fiber source is the reference, so depth is just
	// depth-per-kW times kW.
	assert.InDelta(t, 15.0, SinglePassDepth(m, l, 6000), 1e-9)
	assert.InDelta(t, 1.125, ConductivityPenalty(m), 1e-12)
}

func TestSpeedModel(t *testing.T) {
	m, l, _ := records(t)
	assert.InDelta(t, 4266.67, RawSpeed(m, l, 6000, 5), 0.01)
	assert.Greater(t, RawSpeed(m, l, 6000, 5), RawSpeed(m, l, 6000, 10))
	assert.Greater(t, RawSpeed(m, l, 8000, 5), RawSpeed(m, l, 6000, 5))
	assert.Zero(t, RawSpeed(m, l, 6000, 0))

	assert.Equal(t, l.MaxSpeedMMMin, EstimateSpeed(m, l, 30000, 0.1))
	assert.Equal(t, l.MinSpeedMMMin, EstimateSpeed(m, l, 500, 100))
}

func TestPairPressureClamps(t *testing.T) {
	_, _, p := records(t)
	assert.InDelta(t, 0.55, PairPressure(p, 5), 1e-12)
	assert.Equal(t, p.MaxPressureBar, PairPressure(p, 500))
	assert.Equal(t, p.MinPressureBar, PairPressure(tables.Pair{BasePressureBar: 0, MinPressureBar: 0.3, MaxPressureBar: 3}, 0))
}

func TestNozzleAndFlow(t *testing.T) {
	assert.Equal(t, 1.0, RecommendedNozzle(0))
	assert.InDelta(t, 1.8, RecommendedNozzle(8), 1e-12)
	assert.Equal(t, 5.0, RecommendedNozzle(80))
	assert.InDelta(t, 8*(16+1)*4.0, GasFlowLPM(16, 2), 1e-9)
}

func TestOptics(t *testing.T) {
	spot := SpotDiameter(1.07, 3.5, 150, 10)
	assert.InDelta(t, 0.0715, spot, 1e-4)
	zr := RayleighLength(spot, 1.07, 3.5)
	assert.InDelta(t, 1.073, zr, 1e-3)

	// Doubling the focal length doubles the spot and quadruples zR.
	assert.InDelta(t, 2*spot, SpotDiameter(1.07, 3.5, 300, 10), 1e-12)
	assert.InDelta(t, 4*zr, RayleighLength(2*spot, 1.07, 3.5), 1e-9)

	assert.Zero(t, SpotDiameter(1.07, 3.5, 150, 0))
	assert.Zero(t, PowerDensity(1000, 0))
	d := PowerDensity(1000, 0.1)
	assert.InDelta(t, 1000/(math.Pi*0.05*0.05/100)/1e6, d, 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
