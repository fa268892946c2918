package focus

import (
	"math"

	"Kerf/internal/physics"
	"Kerf/internal/tables"
)

// Optics is the focused beam of one source/lens combination.
type Optics struct {
	WavelengthUM     float64 `json:"wavelength_um"`
	BeamQualityM2    float64 `json:"beam_quality_m2"`
	RawBeamMM        float64 `json:"raw_beam_diameter_mm"`
	FocalLengthMM    float64 `json:"focal_length_mm"`
	SpotDiameterMM   float64 `json:"spot_diameter_mm"`
	RayleighLengthMM float64 `json:"rayleigh_length_mm"`
	DepthOfFocusMM   float64 `json:"depth_of_focus_mm"`
	PowerDensityMWcm float64 `json:"power_density_mw_cm2"`
	KerfWidthMM      float64 `json:"kerf_width_mm"`
}

// analyze computes the optics, taking caller overrides of beam quality and
// raw beam diameter over the source's table values.
func analyze(l tables.Laser, in Input) Optics {
	o := Optics{
		WavelengthUM:  l.WavelengthUM,
		BeamQualityM2: l.BeamQualityM2,
		RawBeamMM:     l.RawBeamDiameterMM,
		FocalLengthMM: in.FocalLengthMM,
	}
	if in.BeamQuality > 0 {
		o.BeamQualityM2 = in.BeamQuality
	}
	if in.RawBeamMM > 0 {
		o.RawBeamMM = in.RawBeamMM
	}
	o.SpotDiameterMM = physics.SpotDiameter(o.WavelengthUM, o.BeamQualityM2, o.FocalLengthMM, o.RawBeamMM)
	o.RayleighLengthMM = physics.RayleighLength(o.SpotDiameterMM, o.WavelengthUM, o.BeamQualityM2)
	o.DepthOfFocusMM = 2 * o.RayleighLengthMM
	o.PowerDensityMWcm = physics.PowerDensity(in.PowerW, o.SpotDiameterMM)

	// Beam width half way through the sheet.
	z := in.ThicknessMM / 2
	o.KerfWidthMM = o.SpotDiameterMM * math.Sqrt(1+(z/o.RayleighLengthMM)*(z/o.RayleighLengthMM))
	return o
}

// dofRatio is sheet thickness over depth of focus.
func (o Optics) dofRatio(thicknessMM float64) float64 {
	if o.DepthOfFocusMM <= 0 {
		return math.Inf(1)
	}
	return thicknessMM / o.DepthOfFocusMM
}
