// Package catalog holds the static tidal constituent reference table:
// nominal frequencies, extended Doodson coefficients, equilibrium phase
// constants, nodal modulation series, and shallow-water compositions.
// The catalog is read-only and safe to share across concurrent calls.
package catalog

// Constituent is one tidal periodic component. Entries are immutable.
type Constituent struct {
	Name          string
	SpeedDegPerHr float64 // Nominal angular speed in degrees per hour.

	// Rank orders constituents by typical equilibrium amplitude; the
	// automatic selector keeps the lower rank of an unresolvable pair.
	Rank int

	// Doodson holds the multiples of (tau, s, h, p, N', pp) that form the
	// equilibrium argument; Semi is the additive phase constant in cycles.
	// Both are zero for shallow-water composites.
	Doodson [6]float64
	Semi    float64

	// Nodal holds the modulation series for the 18.6-year nodal cycle.
	// Nil means no modulation (solar constituents).
	Nodal *NodalSeries

	// Shallow lists the parent terms a shallow-water composite is built
	// from. Nil for astronomical constituents.
	Shallow []ShallowTerm
}

// NodalSeries expresses the amplitude factor f and phase correction u
// (degrees) as truncated Fourier series in the lunar node longitude N:
//
//	f(N) = F0 + sum_k FCos[k-1]*cos(kN)
//	u(N) = sum_k USin[k-1]*sin(kN)
type NodalSeries struct {
	F0   float64
	FCos []float64
	USin []float64

	// LatDegree marks third-degree terms whose modulation amplitude
	// depends on latitude: 1 for diurnal-type, 2 for semidiurnal-type,
	// 0 for the usual second-degree terms.
	LatDegree int
}

// ShallowTerm is one parent contribution to a shallow-water composite.
// F multiplies as F_parent^|Coef|; U, V and frequency add as Coef*parent.
type ShallowTerm struct {
	Parent string
	Coef   float64
}

// Frequency returns the nominal frequency in cycles per hour.
func (c Constituent) Frequency() float64 {
	return c.SpeedDegPerHr / 360.0
}

// IsShallow reports whether the constituent is a shallow-water composite.
func (c Constituent) IsShallow() bool {
	return len(c.Shallow) > 0
}

// Nodal modulation series shared across constituent families.
// Coefficients follow the standard Schureman-derived expansions
// (u in degrees, f dimensionless).
var (
	// Principal lunar semidiurnal family (M2, N2, 2N2, MU2, NU2, L2).
	nodalM2 = &NodalSeries{
		F0:   1.0004,
		FCos: []float64{-0.0373, 0.0002},
		USin: []float64{-2.14},
	}
	nodalK2 = &NodalSeries{
		F0:   1.0241,
		FCos: []float64{0.2863, 0.0083, -0.0015},
		USin: []float64{-17.74, 0.68, -0.04},
	}
	nodalK1 = &NodalSeries{
		F0:   1.0060,
		FCos: []float64{0.1150, -0.0088, 0.0006},
		USin: []float64{-8.86, 0.68, -0.07},
	}
	// Lunar diurnal family (O1, Q1, RHO1).
	nodalO1 = &NodalSeries{
		F0:   1.0089,
		FCos: []float64{0.1871, -0.0147, 0.0014},
		USin: []float64{10.80, -1.34, 0.19},
	}
	nodalJ1 = &NodalSeries{
		F0:   1.0129,
		FCos: []float64{0.1676, -0.0170, 0.0016},
		USin: []float64{-12.94, 1.34, -0.19},
	}
	nodalOO1 = &NodalSeries{
		F0:   1.1027,
		FCos: []float64{0.6504, 0.0317, -0.0014},
		USin: []float64{-36.68, 4.02, -0.57},
	}
	nodalMm = &NodalSeries{
		F0:   1.0000,
		FCos: []float64{-0.1300, 0.0013},
	}
	nodalMf = &NodalSeries{
		F0:   1.0429,
		FCos: []float64{0.4135, -0.0040},
		USin: []float64{-23.74, 2.68, -0.38},
	}
)

// Entries lists the built-in constituents in priority order: ties in the
// Rayleigh resolvability check are broken by declaration order.
var Entries = []Constituent{
	// Long period.
	{Name: "SA", Rank: 18, SpeedDegPerHr: 0.0410686, Doodson: [6]float64{0, 0, 1, 0, 0, -1}},
	{Name: "SSA", Rank: 17, SpeedDegPerHr: 0.0821373, Doodson: [6]float64{0, 0, 2, 0, 0, 0}},
	{Name: "MM", Rank: 11, SpeedDegPerHr: 0.5443747, Doodson: [6]float64{0, 1, 0, -1, 0, 0}, Nodal: nodalMm},
	{Name: "MSF", Rank: 19, SpeedDegPerHr: 1.0158958, Doodson: [6]float64{0, 2, -2, 0, 0, 0}, Nodal: nodalM2},
	{Name: "MF", Rank: 10, SpeedDegPerHr: 1.0980331, Doodson: [6]float64{0, 2, 0, 0, 0, 0}, Nodal: nodalMf},

	// Diurnal.
	{Name: "Q1", Rank: 8, SpeedDegPerHr: 13.3986609, Doodson: [6]float64{1, -2, 0, 1, 0, 0}, Semi: -0.25, Nodal: nodalO1},
	{Name: "RHO1", Rank: 20, SpeedDegPerHr: 13.4715145, Doodson: [6]float64{1, -2, 2, -1, 0, 0}, Semi: -0.25, Nodal: nodalO1},
	{Name: "O1", Rank: 4, SpeedDegPerHr: 13.9430356, Doodson: [6]float64{1, -1, 0, 0, 0, 0}, Semi: -0.25, Nodal: nodalO1},
	{Name: "P1", Rank: 6, SpeedDegPerHr: 14.9589314, Doodson: [6]float64{1, 1, -2, 0, 0, 0}, Semi: -0.25},
	{Name: "K1", Rank: 2, SpeedDegPerHr: 15.0410686, Doodson: [6]float64{1, 1, 0, 0, 0, 0}, Semi: -0.75, Nodal: nodalK1},
	{Name: "J1", Rank: 16, SpeedDegPerHr: 15.5854433, Doodson: [6]float64{1, 2, 0, -1, 0, 0}, Semi: -0.75, Nodal: nodalJ1},
	{Name: "OO1", Rank: 21, SpeedDegPerHr: 16.1391017, Doodson: [6]float64{1, 3, 0, 0, 0, 0}, Semi: -0.75, Nodal: nodalOO1},

	// Semidiurnal.
	{Name: "2N2", Rank: 12, SpeedDegPerHr: 27.8953548, Doodson: [6]float64{2, -2, 0, 2, 0, 0}, Nodal: nodalM2},
	{Name: "MU2", Rank: 13, SpeedDegPerHr: 27.9682084, Doodson: [6]float64{2, -2, 2, 0, 0, 0}, Nodal: nodalM2},
	{Name: "N2", Rank: 5, SpeedDegPerHr: 28.4397295, Doodson: [6]float64{2, -1, 0, 1, 0, 0}, Nodal: nodalM2},
	{Name: "NU2", Rank: 9, SpeedDegPerHr: 28.5125831, Doodson: [6]float64{2, -1, 2, -1, 0, 0}, Nodal: nodalM2},
	{Name: "M2", Rank: 1, SpeedDegPerHr: 28.9841042, Doodson: [6]float64{2, 0, 0, 0, 0, 0}, Nodal: nodalM2},
	{Name: "L2", Rank: 14, SpeedDegPerHr: 29.5284789, Doodson: [6]float64{2, 1, 0, -1, 0, 0}, Semi: -0.5, Nodal: nodalM2},
	{Name: "T2", Rank: 15, SpeedDegPerHr: 29.9589333, Doodson: [6]float64{2, 2, -3, 0, 0, 1}},
	{Name: "S2", Rank: 3, SpeedDegPerHr: 30.0000000, Doodson: [6]float64{2, 2, -2, 0, 0, 0}},
	{Name: "K2", Rank: 7, SpeedDegPerHr: 30.0821373, Doodson: [6]float64{2, 2, 0, 0, 0, 0}, Nodal: nodalK2},

	// Shallow water and overtides.
	{Name: "M3", Rank: 29, SpeedDegPerHr: 43.4761563, Shallow: []ShallowTerm{{Parent: "M2", Coef: 1.5}}},
	{Name: "MK3", Rank: 26, SpeedDegPerHr: 44.0251729, Shallow: []ShallowTerm{{Parent: "M2", Coef: 1}, {Parent: "K1", Coef: 1}}},
	{Name: "MN4", Rank: 24, SpeedDegPerHr: 57.4238337, Shallow: []ShallowTerm{{Parent: "M2", Coef: 1}, {Parent: "N2", Coef: 1}}},
	{Name: "M4", Rank: 22, SpeedDegPerHr: 57.9682084, Shallow: []ShallowTerm{{Parent: "M2", Coef: 2}}},
	{Name: "MS4", Rank: 23, SpeedDegPerHr: 58.9841042, Shallow: []ShallowTerm{{Parent: "M2", Coef: 1}, {Parent: "S2", Coef: 1}}},
	{Name: "S4", Rank: 27, SpeedDegPerHr: 60.0000000, Shallow: []ShallowTerm{{Parent: "S2", Coef: 2}}},
	{Name: "M6", Rank: 25, SpeedDegPerHr: 86.9523127, Shallow: []ShallowTerm{{Parent: "M2", Coef: 3}}},
	{Name: "M8", Rank: 28, SpeedDegPerHr: 115.9364166, Shallow: []ShallowTerm{{Parent: "M2", Coef: 4}}},
}

var byName = func() map[string]int {
	m := make(map[string]int, len(Entries))
	for i, c := range Entries {
		m[c.Name] = i
	}
	return m
}()

// Index returns the catalog position of a constituent by name.
func Index(name string) (int, bool) {
	i, ok := byName[name]
	return i, ok
}

// Get returns the constituent at a catalog position. Indices outside the
// catalog are a caller contract violation and panic.
func Get(index int) Constituent {
	return Entries[index]
}

// Names returns the constituent names in priority order.
func Names() []string {
	names := make([]string, len(Entries))
	for i, c := range Entries {
		names[i] = c.Name
	}
	return names
}
