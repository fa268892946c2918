// Package focus analyses the focusing optics of a cut: spot size, Rayleigh
// length, depth of focus and power density, and from them the focus
// position relative to the sheet surface.
package focus

import (
	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

const ID = "focus"

const (
	fieldFocalLength  = "focal_length_mm"
	fieldRawBeam      = "raw_beam_diameter_mm"
	fieldBeamQuality  = "beam_quality_m2"
	fieldCutLength    = "cut_length_m"
	fieldQuantity     = "quantity"
	fieldCurrentFocus = "current_focus_mm"
)

// MaxFocusAboveMM is the highest focus position above the surface the
// analyzer recommends.
const MaxFocusAboveMM = 2.0

var Grades = engine.GradeScale{
	Bands: []engine.GradeBand{{Min: 85, Grade: "A"}, {Min: 72, Grade: "B"}, {Min: 60, Grade: "C"}, {Min: 45, Grade: "D"}},
	Floor: "F",
}

type Calculator struct {
	tables *tables.Set
}

func New(t *tables.Set) Calculator {
	return Calculator{tables: t}
}

func (Calculator) ID() string    { return ID }
func (Calculator) Title() string { return "Focus position and optics analyzer" }

func (c Calculator) Schema() engine.Schema {
	return engine.Schema{Fields: []engine.Field{
		process.LaserField(),
		process.MaterialField(c.tables),
		process.GasField(tables.GasNitrogen),
		process.ThicknessField(6),
		process.PowerField(4000),
		{
			Name: fieldFocalLength, Label: "Focal length", Kind: engine.FieldNumber, Unit: "mm",
			Min: 50, Max: 500, Default: 150.0,
		},
		{
			Name: fieldRawBeam, Label: "Raw beam diameter", Kind: engine.FieldOptional, Unit: "mm",
			Min: 1, Max: 50, Description: "Collimated beam diameter at the lens; defaults to the source's typical value.",
		},
		{
			Name: fieldBeamQuality, Label: "Beam quality M²", Kind: engine.FieldOptional,
			Min: 1, Max: 30, Description: "Defaults to the source's typical value.",
		},
		process.QualityField(),
		{
			Name: fieldCutLength, Label: "Cut length per part", Kind: engine.FieldNumber, Unit: "m",
			Min: 0.01, Max: 10000, Default: 10.0,
		},
		{
			Name: fieldQuantity, Label: "Quantity", Kind: engine.FieldInteger, Unit: "parts",
			Min: 1, Max: 100000, Default: 1.0,
		},
		{
			Name: fieldCurrentFocus, Label: "Current focus position", Kind: engine.FieldOptional, Unit: "mm",
			Min: -100, Max: 10, Description: "Negative is below the sheet surface.",
		},
		process.ElectricityField(),
		process.LaborRateField(),
	}}
}

func (c Calculator) DefaultInputs() map[string]any {
	return c.Schema().Defaults()
}

func (Calculator) ExampleInputs() []engine.Example {
	return []engine.Example{
		{
			Name:        "fiber-stainless",
			Description: "6 mm stainless with nitrogen on a 150 mm lens.",
			Inputs: map[string]any{
				"laser_type": "fiber", "material": "stainless_steel", "gas": "nitrogen",
				"thickness_mm": 6.0, "laser_power_w": 4000.0, "focal_length_mm": 150.0, "quality": "precision",
			},
		},
		{
			Name:        "co2-mild-steel-oxygen",
			Description: "10 mm mild steel with oxygen on a CO2 source, checking today's setting.",
			Inputs: map[string]any{
				"laser_type": "co2", "material": "mild_steel", "gas": "oxygen",
				"thickness_mm": 10.0, "laser_power_w": 4000.0, "focal_length_mm": 190.5,
				"current_focus_mm": -2.0,
			},
		},
		{
			Name:        "thick-aluminum",
			Description: "12 mm aluminium where the depth of focus is the limit.",
			Inputs: map[string]any{
				"laser_type": "fiber", "material": "aluminum", "gas": "nitrogen",
				"thickness_mm": 12.0, "laser_power_w": 12000.0, "focal_length_mm": 200.0,
				"beam_quality_m2": 4.0,
			},
		},
	}
}

type Input struct {
	Laser             tables.LaserType
	Material          tables.MaterialID
	Gas               tables.Gas
	ThicknessMM       float64
	PowerW            float64
	FocalLengthMM     float64
	RawBeamMM         float64 // 0 when not supplied
	BeamQuality       float64 // 0 when not supplied
	Quality           process.Quality
	CutLengthM        float64
	Quantity          int
	CurrentFocus      float64
	HasCurrentFocus   bool
	ElectricityPerKWh float64
	LaborRate         float64
	HasLaborRate      bool
}

func decode(req engine.Request) (Input, error) {
	in := Input{
		Material:          tables.MaterialID(req.Enum(process.FieldMaterial)),
		ThicknessMM:       req.Number(process.FieldThickness),
		PowerW:            req.Number(process.FieldPower),
		FocalLengthMM:     req.Number(fieldFocalLength),
		RawBeamMM:         req.Number(fieldRawBeam),
		BeamQuality:       req.Number(fieldBeamQuality),
		CutLengthM:        req.Number(fieldCutLength),
		Quantity:          req.Int(fieldQuantity),
		ElectricityPerKWh: req.Number(process.FieldElectricity),
	}
	// A focus of exactly 0 mm is a real setting, so presence matters.
	in.CurrentFocus, in.HasCurrentFocus = req.Optional(fieldCurrentFocus)
	in.LaborRate, in.HasLaborRate = req.Optional(process.FieldLaborRate)

	var err error
	if in.Laser, err = tables.ParseLaserType(req.Enum(process.FieldLaserType)); err != nil {
		return Input{}, err
	}
	if in.Gas, err = tables.ParseGas(req.Enum(process.FieldGas)); err != nil {
		return Input{}, err
	}
	if in.Quality, err = process.ParseQuality(req.Enum(process.FieldQuality)); err != nil {
		return Input{}, err
	}
	return in, nil
}
