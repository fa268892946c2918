// Package gaspressure recommends the assist gas pressure for one cut, with
// a tolerance band, gas consumption and the quality, time and cost that
// pressure leads to.
package gaspressure

import (
	"fmt"

	"Kerf/internal/calc/process"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

const ID = "gas-pressure"

const (
	fieldStrategy        = "strategy"
	fieldNozzleType      = "nozzle_type"
	fieldCutLength       = "cut_length_m"
	fieldQuantity        = "quantity"
	fieldCurrentPressure = "current_pressure_bar"
)

// Strategy is what the pressure is tuned for.
type Strategy string

const (
	StrategyBalanced  Strategy = "balanced"
	StrategyHighSpeed Strategy = "high_speed"
	StrategyDrossFree Strategy = "dross_free"
)

var strategies = []Strategy{StrategyBalanced, StrategyHighSpeed, StrategyDrossFree}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyBalanced, StrategyHighSpeed, StrategyDrossFree:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// NozzleType is the nozzle construction.
type NozzleType string

const (
	NozzleSingle NozzleType = "single"
	NozzleDouble NozzleType = "double"
)

func ParseNozzleType(s string) (NozzleType, error) {
	switch NozzleType(s) {
	case NozzleSingle, NozzleDouble:
		return NozzleType(s), nil
	}
	return "", fmt.Errorf("unknown nozzle type %q", s)
}

var Grades = engine.GradeScale{
	Bands: []engine.GradeBand{{Min: 88, Grade: "A"}, {Min: 75, Grade: "B"}, {Min: 62, Grade: "C"}, {Min: 48, Grade: "D"}},
	Floor: "F",
}

type Calculator struct {
	tables *tables.Set
}

func New(t *tables.Set) Calculator {
	return Calculator{tables: t}
}

func (Calculator) ID() string    { return ID }
func (Calculator) Title() string { return "Assist gas pressure optimizer" }

func (c Calculator) Schema() engine.Schema {
	stratOpts := make([]string, len(strategies))
	for i, s := range strategies {
		stratOpts[i] = string(s)
	}
	return engine.Schema{Fields: []engine.Field{
		process.MaterialField(c.tables),
		process.GasField(tables.GasNitrogen),
		process.LaserField(),
		process.ThicknessField(8),
		process.PowerField(4000),
		process.QualityField(),
		{
			Name: fieldStrategy, Label: "Optimise for", Kind: engine.FieldEnum,
			Options: stratOpts, Default: string(StrategyBalanced),
		},
		{
			Name: fieldNozzleType, Label: "Nozzle type", Kind: engine.FieldEnum,
			Options: []string{string(NozzleSingle), string(NozzleDouble)}, Default: string(NozzleSingle),
		},
		process.NozzleField(),
		{
			Name: fieldCutLength, Label: "Cut length per part", Kind: engine.FieldNumber, Unit: "m",
			Min: 0.01, Max: 10000, Default: 10.0,
		},
		{
			Name: fieldQuantity, Label: "Quantity", Kind: engine.FieldInteger, Unit: "parts",
			Min: 1, Max: 100000, Default: 1.0,
		},
		{
			Name: fieldCurrentPressure, Label: "Current pressure", Kind: engine.FieldOptional, Unit: "bar",
			Min: 0.1, Max: 40, Description: "Pressure the machine runs today, for comparison.",
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
			Name:        "stainless-nitrogen-precision",
			Description: "8 mm stainless with nitrogen for a weld-ready edge.",
			Inputs: map[string]any{
				"material": "stainless_steel", "gas": "nitrogen", "laser_type": "fiber",
				"thickness_mm": 8.0, "laser_power_w": 6000.0, "quality": "precision",
				"strategy": "balanced", "cut_length_m": 12.0, "quantity": 20.0,
			},
		},
		{
			Name:        "mild-steel-oxygen",
			Description: "12 mm mild steel with oxygen on a double nozzle.",
			Inputs: map[string]any{
				"material": "mild_steel", "gas": "oxygen", "laser_type": "fiber",
				"thickness_mm": 12.0, "laser_power_w": 4000.0, "quality": "standard",
				"strategy": "dross_free", "nozzle_type": "double", "cut_length_m": 6.0,
				"current_pressure_bar": 1.2,
			},
		},
		{
			Name:        "aluminum-air-fast",
			Description: "3 mm aluminium with compressed air at high speed.",
			Inputs: map[string]any{
				"material": "aluminum", "gas": "air", "laser_type": "fiber",
				"thickness_mm": 3.0, "laser_power_w": 3000.0, "quality": "rough",
				"strategy": "high_speed", "cut_length_m": 4.0, "quantity": 200.0,
			},
		},
	}
}

type Input struct {
	Material          tables.MaterialID
	Gas               tables.Gas
	Laser             tables.LaserType
	ThicknessMM       float64
	PowerW            float64
	Quality           process.Quality
	Strategy          Strategy
	NozzleType        NozzleType
	NozzleMM          float64
	CutLengthM        float64
	Quantity          int
	CurrentPressure   float64
	ElectricityPerKWh float64
	LaborRate         float64
	HasLaborRate      bool
}

func decode(req engine.Request) (Input, error) {
	in := Input{
		Material:          tables.MaterialID(req.Enum(process.FieldMaterial)),
		ThicknessMM:       req.Number(process.FieldThickness),
		PowerW:            req.Number(process.FieldPower),
		NozzleMM:          req.Number(process.FieldNozzle),
		CutLengthM:        req.Number(fieldCutLength),
		Quantity:          req.Int(fieldQuantity),
		CurrentPressure:   req.Number(fieldCurrentPressure),
		ElectricityPerKWh: req.Number(process.FieldElectricity),
	}
	in.LaborRate, in.HasLaborRate = req.Optional(process.FieldLaborRate)

	var err error
	if in.Gas, err = tables.ParseGas(req.Enum(process.FieldGas)); err != nil {
		return Input{}, err
	}
	if in.Laser, err = tables.ParseLaserType(req.Enum(process.FieldLaserType)); err != nil {
		return Input{}, err
	}
	if in.Quality, err = process.ParseQuality(req.Enum(process.FieldQuality)); err != nil {
		return Input{}, err
	}
	if in.Strategy, err = ParseStrategy(req.Enum(fieldStrategy)); err != nil {
		return Input{}, err
	}
	if in.NozzleType, err = ParseNozzleType(req.Enum(fieldNozzleType)); err != nil {
		return Input{}, err
	}
	return in, nil
}
