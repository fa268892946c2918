package engine

import "math"

// Band is the qualitative size of a sensitivity delta.
type Band string

const (
	BandMinimal     Band = "minimal"
	BandNoticeable  Band = "noticeable"
	BandSignificant Band = "significant"
)

// Band thresholds on |delta| in percent.
const (
	noticeableAbove  = 2.0
	significantAbove = 5.0
)

// Magnitudes are the fixed perturbations, in percent, applied to every
// sensitivity input.
var Magnitudes = []float64{-10, -5, 5, 10}

// Perturbation declares how one outcome responds to one derived parameter.
// Elasticity is the percent change of the outcome per percent change of
// the parameter; Base is the outcome's computed value.
type Perturbation struct {
	Parameter  string
	Outcome    string
	Unit       string
	Base       float64
	Elasticity float64
}

// SensitivityEntry is one (perturbation, outcome delta, band) tuple.
type SensitivityEntry struct {
	Parameter       string  `json:"parameter"`
	Outcome         string  `json:"outcome"`
	PerturbationPct float64 `json:"perturbation_pct"`
	DeltaPct        float64 `json:"delta_pct"`
	Delta           float64 `json:"delta"`
	Unit            string  `json:"unit,omitempty"`
	Band            Band    `json:"band"`
}

// SensitivityReport has len(inputs) * len(Magnitudes) entries.
type SensitivityReport struct {
	Entries       []SensitivityEntry `json:"entries"`
	MostSensitive string             `json:"most_sensitive"`
}

// AnalyzeSensitivity applies each fixed magnitude to each input with a
// proportional model. It does not re-run any derivation.
func AnalyzeSensitivity(inputs []Perturbation) SensitivityReport {
	report := SensitivityReport{Entries: make([]SensitivityEntry, 0, len(inputs)*len(Magnitudes))}
	var worst float64
	for _, in := range inputs {
		for _, p := range Magnitudes {
			deltaPct := in.Elasticity * p
			report.Entries = append(report.Entries, SensitivityEntry{
				Parameter:       in.Parameter,
				Outcome:         in.Outcome,
				PerturbationPct: p,
				DeltaPct:        deltaPct,
				Delta:           in.Base * deltaPct / 100,
				Unit:            in.Unit,
				Band:            BandFor(deltaPct),
			})
		}
		if e := math.Abs(in.Elasticity); e > worst {
			worst = e
			report.MostSensitive = in.Parameter + " -> " + in.Outcome
		}
	}
	return report
}

// BandFor classifies a percent delta.
func BandFor(deltaPct float64) Band {
	d := math.Abs(deltaPct)
	switch {
	case d < noticeableAbove:
		return BandMinimal
	case d < significantAbove:
		return BandNoticeable
	default:
		return BandSignificant
	}
}
