// Package multipass plans thick-section cuts that take more than one pass:
// how many passes, how deep each one goes, and the power, speed, pressure
// and focus of every pass.
package multipass

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

const ID = "multipass"

// AbsoluteMaxPasses caps the pass count whatever the caller allows.
const AbsoluteMaxPasses = 20

// Field names specific to this calculator.
const (
	fieldMaxDepth     = "max_depth_per_pass_mm"
	fieldStrategy     = "strategy"
	fieldPartLength   = "part_length_mm"
	fieldQuantity     = "quantity"
	fieldMaxPasses    = "max_passes"
	fieldCurrentSpeed = "current_speed_mm_min"
)

// Strategy is the closed set of multi-pass approaches.
type Strategy string

const (
	// StrategyUniform runs equal passes at flat power.
	StrategyUniform Strategy = "uniform"
	// StrategyAdaptive adds a pass and ramps power down linearly.
	StrategyAdaptive Strategy = "adaptive"
	// StrategyStaged scales the pass count by the material's work
	// hardening and steps power down through roughing and finishing.
	StrategyStaged Strategy = "staged"
)

var strategies = []Strategy{StrategyUniform, StrategyAdaptive, StrategyStaged}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyUniform, StrategyAdaptive, StrategyStaged:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Grades is this calculator's score-to-grade table.
var Grades = engine.GradeScale{
	Bands: []engine.GradeBand{{Min: 90, Grade: "A"}, {Min: 78, Grade: "B"}, {Min: 65, Grade: "C"}, {Min: 50, Grade: "D"}},
	Floor: "F",
}

// Calculator is the multi-pass optimizer. The zero value is not usable;
// construct it with New.
type Calculator struct {
	tables *tables.Set
}

func New(t *tables.Set) Calculator {
	return Calculator{tables: t}
}

func (Calculator) ID() string    { return ID }
func (Calculator) Title() string { return "Multi-pass cutting optimizer" }

func (c Calculator) Schema() engine.Schema {
	stratOpts := make([]string, len(strategies))
	for i, s := range strategies {
		stratOpts[i] = string(s)
	}
	return engine.Schema{Fields: []engine.Field{
		process.MaterialField(c.tables),
		process.LaserField(),
		process.GasField(tables.GasOxygen),
		process.ThicknessField(20),
		process.PowerField(6000),
		{
			Name: fieldMaxDepth, Label: "Max depth per pass", Kind: engine.FieldOptional, Unit: "mm",
			Min: 0.1, Max: 50, Description: "Leave empty to derive it from power and material.",
		},
		{
			Name: fieldStrategy, Label: "Strategy", Kind: engine.FieldEnum,
			Options: stratOpts, Default: string(StrategyAdaptive),
		},
		process.QualityField(),
		{
			Name: fieldPartLength, Label: "Cut path length per part", Kind: engine.FieldNumber, Unit: "mm",
			Min: 1, Max: 100000, Default: 1000.0,
		},
		{
			Name: fieldQuantity, Label: "Quantity", Kind: engine.FieldInteger, Unit: "parts",
			Min: 1, Max: 100000, Default: 1.0,
		},
		{
			Name: fieldMaxPasses, Label: "Pass limit", Kind: engine.FieldInteger, Unit: "passes",
			Min: 1, Max: 50, Default: 10.0,
			Description: fmt.Sprintf("Never more than %d passes are planned.", AbsoluteMaxPasses),
		},
		process.NozzleField(),
		{
			Name: fieldCurrentSpeed, Label: "Current speed", Kind: engine.FieldOptional, Unit: "mm/min",
			Min: 10, Max: 100000, Description: "Speed the machine runs today, for comparison.",
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
			Name:        "thick-mild-steel",
			Description: "20 mm mild steel with oxygen, 8 mm per pass, adaptive ramp.",
			Inputs: map[string]any{
				"material": "mild_steel", "laser_type": "fiber", "gas": "oxygen",
				"thickness_mm": 20.0, "laser_power_w": 6000.0, "max_depth_per_pass_mm": 8.0,
				"strategy": "adaptive", "quality": "standard", "part_length_mm": 1200.0, "quantity": 10.0,
			},
		},
		{
			Name:        "stainless-staged",
			Description: "25 mm stainless with nitrogen, staged passes, precision edge.",
			Inputs: map[string]any{
				"material": "stainless_steel", "laser_type": "fiber", "gas": "nitrogen",
				"thickness_mm": 25.0, "laser_power_w": 12000.0, "strategy": "staged",
				"quality": "precision", "part_length_mm": 800.0, "quantity": 4.0,
			},
		},
		{
			Name:        "thin-aluminum",
			Description: "3 mm aluminium that one pass cuts cleanly.",
			Inputs: map[string]any{
				"material": "aluminum", "laser_type": "fiber", "gas": "nitrogen",
				"thickness_mm": 3.0, "laser_power_w": 4000.0, "strategy": "uniform",
				"quality": "standard", "part_length_mm": 600.0, "quantity": 50.0,
			},
		},
	}
}

// Input is the typed form of a request.
type Input struct {
	Material          tables.MaterialID
	Laser             tables.LaserType
	Gas               tables.Gas
	ThicknessMM       float64
	PowerW            float64
	MaxDepthPerPassMM float64 // 0 when derived
	Strategy          Strategy
	Quality           process.Quality
	PartLengthMM      float64
	Quantity          int
	MaxPasses         int
	NozzleMM          float64 // 0 when not supplied
	CurrentSpeed      float64 // 0 when not supplied
	ElectricityPerKWh float64
	LaborRate         float64
	HasLaborRate      bool
}

func decode(req engine.Request) (Input, error) {
	in := Input{
		Material:          tables.MaterialID(req.Enum(process.FieldMaterial)),
		ThicknessMM:       req.Number(process.FieldThickness),
		PowerW:            req.Number(process.FieldPower),
		MaxDepthPerPassMM: req.Number(fieldMaxDepth),
		PartLengthMM:      req.Number(fieldPartLength),
		Quantity:          req.Int(fieldQuantity),
		MaxPasses:         req.Int(fieldMaxPasses),
		NozzleMM:          req.Number(process.FieldNozzle),
		CurrentSpeed:      req.Number(fieldCurrentSpeed),
		ElectricityPerKWh: req.Number(process.FieldElectricity),
	}
	in.LaborRate, in.HasLaborRate = req.Optional(process.FieldLaborRate)

	var err error
	if in.Laser, err = tables.ParseLaserType(req.Enum(process.FieldLaserType)); err != nil {
		return Input{}, err
	}
	if in.Gas, err = tables.ParseGas(req.Enum(process.FieldGas)); err != nil {
		return Input{}, err
	}
	if in.Strategy, err = ParseStrategy(req.Enum(fieldStrategy)); err != nil {
		return Input{}, err
	}
	if in.Quality, err = process.ParseQuality(req.Enum(process.FieldQuality)); err != nil {
		return Input{}, err
	}
	return in, nil
}
