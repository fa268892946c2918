// Package tables holds the read-only property tables (materials, assist
// gases, laser sources and material/gas pairs) every calculator reads from.
//
// A Set is built once with Load, Embedded or New and is never mutated
// afterwards, so one Set can be shared by any number of concurrent
// calculations without locking. Lookups return copies.
package tables

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/tables.yaml
var embedded []byte

// maxFocusBaseMM bounds a source's nominal focus offset from the surface.
const maxFocusBaseMM = 5.0

// MaterialID keys the material table. Materials are data, not code, so the
// set of valid ids is whatever the loaded table declares.
type MaterialID string

// Gas is the closed set of assist gases the calculators know how to reason about.
type Gas string

const (
	GasOxygen   Gas = "oxygen"
	GasNitrogen Gas = "nitrogen"
	GasAir      Gas = "air"
	GasArgon    Gas = "argon"
)

// Gases lists every assist gas in display order.
var Gases = []Gas{GasOxygen, GasNitrogen, GasAir, GasArgon}

// ParseGas converts a form value into a Gas.
func ParseGas(s string) (Gas, error) {
	switch Gas(s) {
	case GasOxygen, GasNitrogen, GasAir, GasArgon:
		return Gas(s), nil
	}
	return "", fmt.Errorf("unknown gas %q", s)
}

// LaserType is the closed set of laser source families.
type LaserType string

const (
	LaserFiber LaserType = "fiber"
	LaserCO2   LaserType = "co2"
	LaserDiode LaserType = "diode"
)

// LaserTypes lists every laser source family in display order.
var LaserTypes = []LaserType{LaserFiber, LaserCO2, LaserDiode}

// ParseLaserType converts a form value into a LaserType.
func ParseLaserType(s string) (LaserType, error) {
	switch LaserType(s) {
	case LaserFiber, LaserCO2, LaserDiode:
		return LaserType(s), nil
	}
	return "", fmt.Errorf("unknown laser type %q", s)
}

// Material is the coefficient record for one sheet material.
type Material struct {
	ID                  MaterialID `yaml:"-"`
	Name                string     `yaml:"name"`
	DensityGCM3         float64    `yaml:"density_g_cm3"`
	ThermalConductivity float64    `yaml:"thermal_conductivity_w_mk"`
	MeltingPointC       float64    `yaml:"melting_point_c"`
	Absorptivity        float64    `yaml:"absorptivity"`
	QualityFactor       float64    `yaml:"quality_factor"`
	CostPerKg           float64    `yaml:"cost_per_kg"`
	WorkHardening       float64    `yaml:"work_hardening"`
	MaxThicknessMM      float64    `yaml:"max_thickness_mm"`
}

// GasProps is the coefficient record for one assist gas.
type GasProps struct {
	ID        Gas     `yaml:"-"`
	Name      string  `yaml:"name"`
	CostPerM3 float64 `yaml:"cost_per_m3"`
	PurityPct float64 `yaml:"purity_pct"`
	Reactive  bool    `yaml:"reactive"`
}

// Laser is the coefficient record for one laser source family.
type Laser struct {
	ID                 LaserType `yaml:"-"`
	Name               string    `yaml:"name"`
	WavelengthUM       float64   `yaml:"wavelength_um"`
	WallPlugEfficiency float64   `yaml:"wall_plug_efficiency"`
	AbsorptionScale    float64   `yaml:"absorption_scale"`
	MinPowerW          float64   `yaml:"min_power_w"`
	MaxPowerW          float64   `yaml:"max_power_w"`
	BeamQualityM2      float64   `yaml:"beam_quality_m2"`
	SpeedConstant      float64   `yaml:"speed_constant"`
	DepthPerKWMM       float64   `yaml:"depth_per_kw_mm"`
	MinSpeedMMMin      float64   `yaml:"min_speed_mm_min"`
	MaxSpeedMMMin      float64   `yaml:"max_speed_mm_min"`
	SetupS             float64   `yaml:"setup_s"`
	PierceS            float64   `yaml:"pierce_s"`
	HourlyRate         float64   `yaml:"hourly_rate"`
	AuxPowerKW         float64   `yaml:"aux_power_kw"`
	RawBeamDiameterMM  float64   `yaml:"raw_beam_diameter_mm"`
	FocusBaseMM        float64   `yaml:"focus_base_mm"`
}

// Pair is the operating envelope of one material cut with one assist gas.
type Pair struct {
	Material        MaterialID `yaml:"material"`
	Gas             Gas        `yaml:"gas"`
	BasePressureBar float64    `yaml:"base_pressure_bar"`
	PressurePerMM   float64    `yaml:"pressure_per_mm"`
	MinPressureBar  float64    `yaml:"min_pressure_bar"`
	MaxPressureBar  float64    `yaml:"max_pressure_bar"`
	QualityFactor   float64    `yaml:"quality_factor"`
	Common          bool       `yaml:"common"`
	TypicalMinMM    float64    `yaml:"typical_min_mm"`
	TypicalMaxMM    float64    `yaml:"typical_max_mm"`
	FocusScale      float64    `yaml:"focus_scale"`
}

// Typical reports whether thickness sits in the pair's everyday range.
func (p Pair) Typical(thicknessMM float64) bool {
	return thicknessMM >= p.TypicalMinMM && thicknessMM <= p.TypicalMaxMM
}

type pairKey struct {
	material MaterialID
	gas      Gas
}

// Set is an immutable collection of property tables.
type Set struct {
	materials map[MaterialID]Material
	gases     map[Gas]GasProps
	lasers    map[LaserType]Laser
	pairs     map[pairKey]Pair
}

type document struct {
	Materials map[MaterialID]Material `yaml:"materials"`
	Gases     map[Gas]GasProps        `yaml:"gases"`
	Lasers    map[LaserType]Laser     `yaml:"lasers"`
	Pairs     []Pair                  `yaml:"pairs"`
}

// Embedded decodes the tables compiled into the binary.
func Embedded() (*Set, error) {
	return Load(bytes.NewReader(embedded))
}

// LoadFile decodes tables from a YAML file on disk.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tables: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML table document.
func Load(r io.Reader) (*Set, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}

	materials := make([]Material, 0, len(doc.Materials))
	for id, m := range doc.Materials {
		m.ID = id
		materials = append(materials, m)
	}
	gases := make([]GasProps, 0, len(doc.Gases))
	for id, g := range doc.Gases {
		g.ID = id
		gases = append(gases, g)
	}
	lasers := make([]Laser, 0, len(doc.Lasers))
	for id, l := range doc.Lasers {
		l.ID = id
		lasers = append(lasers, l)
	}
	return New(materials, gases, lasers, doc.Pairs)
}

// New builds a Set from literal records. Tests use it to substitute tables.
func New(materials []Material, gases []GasProps, lasers []Laser, pairs []Pair) (*Set, error) {
	s := &Set{
		materials: make(map[MaterialID]Material, len(materials)),
		gases:     make(map[Gas]GasProps, len(gases)),
		lasers:    make(map[LaserType]Laser, len(lasers)),
		pairs:     make(map[pairKey]Pair, len(pairs)),
	}
	for _, m := range materials {
		if err := m.validate(); err != nil {
			return nil, err
		}
		s.materials[m.ID] = m
	}
	for _, g := range gases {
		if _, err := ParseGas(string(g.ID)); err != nil {
			return nil, fmt.Errorf("gas table: %w", err)
		}
		if g.CostPerM3 < 0 {
			return nil, fmt.Errorf("gas %s: negative cost", g.ID)
		}
		s.gases[g.ID] = g
	}
	for _, l := range lasers {
		if err := l.validate(); err != nil {
			return nil, err
		}
		s.lasers[l.ID] = l
	}
	for _, p := range pairs {
		if _, ok := s.materials[p.Material]; !ok {
			return nil, fmt.Errorf("pair %s/%s: unknown material", p.Material, p.Gas)
		}
		if _, ok := s.gases[p.Gas]; !ok {
			return nil, fmt.Errorf("pair %s/%s: unknown gas", p.Material, p.Gas)
		}
		if p.MinPressureBar <= 0 || p.MinPressureBar > p.MaxPressureBar {
			return nil, fmt.Errorf("pair %s/%s: invalid pressure envelope [%g, %g]",
				p.Material, p.Gas, p.MinPressureBar, p.MaxPressureBar)
		}
		if p.TypicalMinMM > p.TypicalMaxMM {
			return nil, fmt.Errorf("pair %s/%s: invalid typical range", p.Material, p.Gas)
		}
		key := pairKey{p.Material, p.Gas}
		if _, dup := s.pairs[key]; dup {
			return nil, fmt.Errorf("pair %s/%s: duplicate entry", p.Material, p.Gas)
		}
		s.pairs[key] = p
	}
	return s, nil
}

func (m Material) validate() error {
	if m.ID == "" {
		return fmt.Errorf("material table: empty id")
	}
	if m.DensityGCM3 <= 0 || m.ThermalConductivity <= 0 || m.MeltingPointC <= 0 {
		return fmt.Errorf("material %s: physical constants must be positive", m.ID)
	}
	if m.Absorptivity <= 0 || m.Absorptivity > 1 {
		return fmt.Errorf("material %s: absorptivity must be in (0, 1]", m.ID)
	}
	if m.WorkHardening < 1 {
		return fmt.Errorf("material %s: work hardening must be >= 1", m.ID)
	}
	return nil
}

func (l Laser) validate() error {
	if _, err := ParseLaserType(string(l.ID)); err != nil {
		return fmt.Errorf("laser table: %w", err)
	}
	if l.MinPowerW <= 0 || l.MinPowerW > l.MaxPowerW {
		return fmt.Errorf("laser %s: invalid power envelope", l.ID)
	}
	if l.MinSpeedMMMin <= 0 || l.MinSpeedMMMin > l.MaxSpeedMMMin {
		return fmt.Errorf("laser %s: invalid speed envelope", l.ID)
	}
	if l.WallPlugEfficiency <= 0 || l.WallPlugEfficiency > 1 {
		return fmt.Errorf("laser %s: wall-plug efficiency must be in (0, 1]", l.ID)
	}
	if l.WavelengthUM <= 0 || l.BeamQualityM2 < 1 || l.SpeedConstant <= 0 || l.DepthPerKWMM <= 0 {
		return fmt.Errorf("laser %s: optical constants out of range", l.ID)
	}
	if l.RawBeamDiameterMM <= 0 {
		return fmt.Errorf("laser %s: raw beam diameter must be positive", l.ID)
	}
	if math.Abs(l.FocusBaseMM) > maxFocusBaseMM {
		return fmt.Errorf("laser %s: focus base %.2f mm outside ±%.0f mm", l.ID, l.FocusBaseMM, maxFocusBaseMM)
	}
	return nil
}

func (s *Set) Material(id MaterialID) (Material, bool) {
	m, ok := s.materials[id]
	return m, ok
}

func (s *Set) Gas(g Gas) (GasProps, bool) {
	p, ok := s.gases[g]
	return p, ok
}

func (s *Set) Laser(t LaserType) (Laser, bool) {
	l, ok := s.lasers[t]
	return l, ok
}

func (s *Set) Pair(m MaterialID, g Gas) (Pair, bool) {
	p, ok := s.pairs[pairKey{m, g}]
	return p, ok
}

// MaterialIDs returns the material keys in sorted order.
func (s *Set) MaterialIDs() []string {
	ids := make([]string, 0, len(s.materials))
	for id := range s.materials {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return ids
}

// GasesFor returns the gases with a table entry for material, in Gases order.
func (s *Set) GasesFor(m MaterialID) []Gas {
	var out []Gas
	for _, g := range Gases {
		if _, ok := s.pairs[pairKey{m, g}]; ok {
			out = append(out, g)
		}
	}
	return out
}
