// Package process holds the laser-cutting vocabulary the calculators share:
// common form fields, table resolution with domain errors, and the cost
// component models.
package process

import (
	"fmt"

	"Kerf/internal/engine"
	"Kerf/internal/physics"
	"Kerf/internal/tables"
)

// Currency of every cost the calculators report.
const Currency = "EUR"

// StripAllowanceMM is the width of sheet consumed along the cut path,
// skeleton and kerf included, when costing material.
const StripAllowanceMM = 10.0

// Quality is the closed set of edge-quality tiers.
type Quality string

const (
	QualityRough     Quality = "rough"
	QualityStandard  Quality = "standard"
	QualityPrecision Quality = "precision"
)

// Qualities lists the tiers from least to most strict.
var Qualities = []Quality{QualityRough, QualityStandard, QualityPrecision}

func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityRough, QualityStandard, QualityPrecision:
		return Quality(s), nil
	}
	return "", fmt.Errorf("unknown quality tier %q", s)
}

// Common field names.
const (
	FieldMaterial    = "material"
	FieldGas         = "gas"
	FieldLaserType   = "laser_type"
	FieldThickness   = "thickness_mm"
	FieldPower       = "laser_power_w"
	FieldQuality     = "quality"
	FieldNozzle      = "nozzle_diameter_mm"
	FieldElectricity = "electricity_per_kwh"
	FieldLaborRate   = "labor_rate_per_hour"
)

func MaterialField(t *tables.Set) engine.Field {
	return engine.Field{
		Name: FieldMaterial, Label: "Material", Kind: engine.FieldEnum,
		Options: t.MaterialIDs(), Default: "mild_steel", Required: true,
		Description: "Sheet material.",
	}
}

func GasField(def tables.Gas) engine.Field {
	opts := make([]string, len(tables.Gases))
	for i, g := range tables.Gases {
		opts[i] = string(g)
	}
	return engine.Field{
		Name: FieldGas, Label: "Assist gas", Kind: engine.FieldEnum,
		Options: opts, Default: string(def), Required: true,
	}
}

func LaserField() engine.Field {
	opts := make([]string, len(tables.LaserTypes))
	for i, l := range tables.LaserTypes {
		opts[i] = string(l)
	}
	return engine.Field{
		Name: FieldLaserType, Label: "Laser source", Kind: engine.FieldEnum,
		Options: opts, Default: string(tables.LaserFiber),
	}
}

func ThicknessField(def float64) engine.Field {
	return engine.Field{
		Name: FieldThickness, Label: "Sheet thickness", Kind: engine.FieldNumber, Unit: "mm",
		Min: 0.1, Max: 100, Default: def, Required: true,
	}
}

func PowerField(def float64) engine.Field {
	return engine.Field{
		Name: FieldPower, Label: "Laser power", Kind: engine.FieldNumber, Unit: "W",
		Min: 100, Max: 30000, Default: def, Required: true,
		Description: "Declared maximum output of the source; no pass exceeds it.",
	}
}

func QualityField() engine.Field {
	opts := make([]string, len(Qualities))
	for i, q := range Qualities {
		opts[i] = string(q)
	}
	return engine.Field{
		Name: FieldQuality, Label: "Quality target", Kind: engine.FieldEnum,
		Options: opts, Default: string(QualityStandard),
	}
}

func NozzleField() engine.Field {
	return engine.Field{
		Name: FieldNozzle, Label: "Nozzle diameter", Kind: engine.FieldOptional, Unit: "mm",
		Min: 0.5, Max: 6, Description: "Leave empty to use the recommended bore.",
	}
}

func ElectricityField() engine.Field {
	return engine.Field{
		Name: FieldElectricity, Label: "Electricity price", Kind: engine.FieldNumber, Unit: "EUR/kWh",
		Min: 0, Max: 5, Default: 0.15,
	}
}

func LaborRateField() engine.Field {
	return engine.Field{
		Name: FieldLaborRate, Label: "Machine + operator rate", Kind: engine.FieldOptional, Unit: "EUR/h",
		Min: 0, Max: 500, Description: "Leave empty to use the source's typical hourly rate.",
	}
}

// Records are the table entries one calculation reads.
type Records struct {
	Material tables.Material
	Gas      tables.GasProps
	Laser    tables.Laser
	Pair     tables.Pair
}

// Resolve looks up every record a request names. Missing entries are
// recorded as blocking domain errors and ok is false.
func Resolve(t *tables.Set, m tables.MaterialID, g tables.Gas, l tables.LaserType, is *engine.Issues) (Records, bool) {
	var rec Records
	ok := true
	var found bool
	if rec.Material, found = t.Material(m); !found {
		is.Errorf("unsupported_material", FieldMaterial, "no property table entry for material %q", m)
		ok = false
	}
	if rec.Gas, found = t.Gas(g); !found {
		is.Errorf("unsupported_gas", FieldGas, "no property table entry for gas %q", g)
		ok = false
	}
	if rec.Laser, found = t.Laser(l); !found {
		is.Errorf("unsupported_laser", FieldLaserType, "no property table entry for laser source %q", l)
		ok = false
	}
	if !ok {
		return rec, false
	}
	if rec.Pair, found = t.Pair(m, g); !found {
		alternatives := t.GasesFor(m)
		is.Errorf("unsupported_combination", FieldGas,
			"%s cannot be cut with %s: no table entry for this pair (supported gases: %v)",
			rec.Material.Name, rec.Gas.Name, alternatives)
		return rec, false
	}
	return rec, true
}

// CheckPower records an error when powerW exceeds the source family's
// ceiling and a warning when it is below its floor.
func CheckPower(l tables.Laser, powerW float64, is *engine.Issues) {
	if powerW > l.MaxPowerW {
		is.Errorf("power_above_source_max", FieldPower,
			"%.0f W exceeds the %.0f W ceiling of a %s", powerW, l.MaxPowerW, l.Name)
		return
	}
	if powerW < l.MinPowerW {
		is.Warnf("power_below_typical", FieldPower,
			"%.0f W is below the %.0f W a %s typically runs at", powerW, l.MinPowerW, l.Name)
	}
}

// CheckThickness warns when the sheet is thicker than the material's
// practical cutting limit.
func CheckThickness(m tables.Material, thicknessMM float64, is *engine.Issues) {
	if m.MaxThicknessMM > 0 && thicknessMM > m.MaxThicknessMM {
		is.Warnf("thickness_above_typical", FieldThickness,
			"%.1f mm is above the %.0f mm usually laser cut in %s", thicknessMM, m.MaxThicknessMM, m.Name)
	}
}

// CheckNozzle warns when a supplied nozzle is much smaller than the bore
// recommended for the thickness.
func CheckNozzle(nozzleMM, thicknessMM float64, is *engine.Issues) {
	rec := physics.RecommendedNozzle(thicknessMM)
	if nozzleMM > 0 && nozzleMM < 0.6*rec {
		is.Warnf("nozzle_undersized", FieldNozzle,
			"a %.1f mm nozzle is undersized for %.1f mm sheet; %.1f mm is recommended", nozzleMM, thicknessMM, rec)
	}
}

// Nozzle returns the supplied bore or the recommended one.
func Nozzle(supplied, thicknessMM float64) float64 {
	if supplied > 0 {
		return supplied
	}
	return physics.RecommendedNozzle(thicknessMM)
}

// LaborRate returns the supplied hourly rate or the source's typical one.
func LaborRate(l tables.Laser, supplied float64, present bool) float64 {
	if present {
		return supplied
	}
	return l.HourlyRate
}

// MaterialCost prices the sheet strip consumed along lengthMM of cut.
func MaterialCost(m tables.Material, lengthMM, thicknessMM float64) float64 {
	volumeMM3 := lengthMM * thicknessMM * StripAllowanceMM
	kg := volumeMM3 * m.DensityGCM3 / 1e6
	return kg * m.CostPerKg
}

// EnergyKWh is the electrical energy of running the source at powerW for
// seconds, auxiliaries included.
func EnergyKWh(l tables.Laser, powerW, seconds float64) float64 {
	electricalKW := (powerW/1000)/l.WallPlugEfficiency + l.AuxPowerKW
	return electricalKW * seconds / 3600
}

// IdleKWh is the auxiliary energy drawn while the beam is off.
func IdleKWh(l tables.Laser, seconds float64) float64 {
	return l.AuxPowerKW * seconds / 3600
}

// GasM3 is the assist gas volume consumed over seconds.
func GasM3(pressureBar, nozzleMM, seconds float64) float64 {
	return physics.GasFlowLPM(pressureBar, nozzleMM) * seconds / 60 / 1000
}

// PassSeconds is the time to traverse lengthMM at speedMMMin.
func PassSeconds(lengthMM, speedMMMin float64) float64 {
	return lengthMM / speedMMMin * 60
}
