package transport_simulator

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model"
)

// GeneratorConfig bounds the synthetic data set.
type GeneratorConfig struct {
	MinYards, MaxYards       int
	MinMachines, MaxMachines int
	MinReports, MaxReports   int // per machine

	AreaMin, AreaMax float64
	RateMin, RateMax float64
	CoordRange       float64 // anchors in [-CoordRange, CoordRange]

	InYardFraction float64 // share of reports placed inside a yard
	YardCoverage   float64 // share of yards that receive work
	GenerationLoss float64 // share of reports removed after generation

	BaseInterval time.Duration
	Start        time.Time // zero: one hour before now
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MinYards: 10, MaxYards: 15,
		MinMachines: 5, MaxMachines: 8,
		MinReports: 12, MaxReports: 20,
		AreaMin: 100, AreaMax: 1000,
		RateMin: 0.5, RateMax: 3.0,
		CoordRange:     100,
		InYardFraction: 0.8,
		YardCoverage:   0.8,
		GenerationLoss: 0.02,
		BaseInterval:   time.Second,
	}
}

// Dataset is a yard directory and a time-sorted report list.
type Dataset struct {
	Yards   []model.YardRecord
	Reports []model.Report
}

// Generator produces reproducible test data from a single seeded source.
type Generator struct {
	cfg     GeneratorConfig
	rng     *rand.Rand
	anchors map[int]model.Position
	jitter  map[[2]int]model.Position // (machine, yard) -> offset
	roam    map[int]model.Position    // machine -> home outside yards
}

func NewGenerator(cfg GeneratorConfig, rng *rand.Rand) *Generator {
	return &Generator{
		cfg:     cfg,
		rng:     rng,
		anchors: make(map[int]model.Position),
		jitter:  make(map[[2]int]model.Position),
		roam:    make(map[int]model.Position),
	}
}

func (g *Generator) Generate() Dataset {
	yards := g.yards()
	selected := g.selectYards(yards)

	start := g.cfg.Start
	if start.IsZero() {
		start = time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	}

	nMachines := g.between(g.cfg.MinMachines, g.cfg.MaxMachines)
	var reports []model.Report
	for m := 1; m <= nMachines; m++ {
		t := start.Add(time.Duration(g.rng.Float64() * float64(5*time.Minute)))
		n := g.between(g.cfg.MinReports, g.cfg.MaxReports)
		for i := 0; i < n; i++ {
			yard := model.NoYard
			if len(selected) > 0 && g.rng.Float64() < g.cfg.InYardFraction {
				yard = selected[g.rng.Intn(len(selected))]
			}
			reports = append(reports, g.report(m, yard, t))
			t = t.Add(g.interval())
		}
	}

	reports = g.ensureCoverage(reports, selected, nMachines)
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Timestamp.Before(reports[j].Timestamp) })
	reports = g.drop(reports)
	g.normalize(reports)

	return Dataset{Yards: yards, Reports: reports}
}

func (g *Generator) yards() []model.YardRecord {
	n := g.between(g.cfg.MinYards, g.cfg.MaxYards)
	out := make([]model.YardRecord, 0, n)
	for id := 1; id <= n; id++ {
		area := math.Round(g.uniform(g.cfg.AreaMin, g.cfg.AreaMax)*10) / 10
		rate := round2(g.uniform(g.cfg.RateMin, g.cfg.RateMax))
		out = append(out, model.YardRecord{YardID: id, Area: area, CleaningRate: rate})
		g.anchors[id] = model.Position{
			X: g.uniform(-g.cfg.CoordRange, g.cfg.CoordRange),
			Y: g.uniform(-g.cfg.CoordRange, g.cfg.CoordRange),
		}
	}
	return out
}

// selectYards picks the yards that will receive work, in ascending id order.
func (g *Generator) selectYards(yards []model.YardRecord) []int {
	k := int(float64(len(yards)) * g.cfg.YardCoverage)
	if k < 1 {
		k = 1
	}
	if k > len(yards) {
		k = len(yards)
	}
	perm := g.rng.Perm(len(yards))[:k]
	out := make([]int, 0, k)
	for _, i := range perm {
		out = append(out, yards[i].YardID)
	}
	sort.Ints(out)
	return out
}

func (g *Generator) report(machineID, yardID int, ts time.Time) model.Report {
	var p model.Position
	if yardID != model.NoYard {
		a := g.anchors[yardID]
		j := g.offset(machineID, yardID)
		p = model.Position{X: a.X + j.X, Y: a.Y + j.Y}
	} else {
		home, ok := g.roam[machineID]
		if !ok {
			home = model.Position{
				X: g.uniform(-g.cfg.CoordRange, g.cfg.CoordRange),
				Y: g.uniform(-g.cfg.CoordRange, g.cfg.CoordRange),
			}
			g.roam[machineID] = home
		}
		p = model.Position{X: home.X + g.uniform(-15, 15), Y: home.Y + g.uniform(-15, 15)}
	}
	return model.Report{
		MachineID: machineID,
		Timestamp: ts,
		X:         round2(p.X),
		Y:         round2(p.Y),
		YardID:    yardID,
	}
}

// offset is a stable per (machine, yard) displacement from the yard anchor.
func (g *Generator) offset(machineID, yardID int) model.Position {
	key := [2]int{machineID, yardID}
	if o, ok := g.jitter[key]; ok {
		return o
	}
	o := model.Position{X: g.uniform(-offsetRange, offsetRange), Y: g.uniform(-offsetRange, offsetRange)}
	g.jitter[key] = o
	return o
}

// ensureCoverage adds short visits to selected yards no report mentions.
func (g *Generator) ensureCoverage(reports []model.Report, selected []int, nMachines int) []model.Report {
	seen := make(map[int]bool)
	for _, r := range reports {
		seen[r.YardID] = true
	}
	for _, y := range selected {
		if seen[y] || len(reports) == 0 {
			continue
		}
		m := 1 + g.rng.Intn(nMachines)
		base := reports[g.rng.Intn(len(reports))].Timestamp
		for i := 0; i < 2+g.rng.Intn(2); i++ {
			shift := time.Duration(g.uniform(-300, 300) * float64(time.Second))
			reports = append(reports, g.report(m, y, base.Add(shift)))
		}
	}
	return reports
}

// normalize rewrites timestamps so consecutive reports are about one
// interval apart, keeping their order.
func (g *Generator) normalize(reports []model.Report) {
	if len(reports) < 2 {
		return
	}
	t := reports[0].Timestamp
	for i := 1; i < len(reports); i++ {
		t = t.Add(g.interval())
		reports[i].Timestamp = t
	}
}

func (g *Generator) drop(reports []model.Report) []model.Report {
	n := int(float64(len(reports)) * g.cfg.GenerationLoss)
	if n <= 0 {
		return reports
	}
	gone := make(map[int]bool, n)
	for _, i := range g.rng.Perm(len(reports))[:n] {
		gone[i] = true
	}
	out := reports[:0]
	for i, r := range reports {
		if !gone[i] {
			out = append(out, r)
		}
	}
	return out
}

// interval is drawn from N(base, 0.2*base) clamped to [0.7, 1.5] x base.
func (g *Generator) interval() time.Duration {
	base := float64(g.cfg.BaseInterval)
	v := base + g.rng.NormFloat64()*base*intervalJitter
	v = math.Max(0.7*base, math.Min(1.5*base, v))
	return time.Duration(v).Round(time.Millisecond)
}

func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) uniform(lo, hi float64) float64 { return lo + g.rng.Float64()*(hi-lo) }
