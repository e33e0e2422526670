package entities

import "time"

// NoYard marks a machine (or report) that is outside every yard.
const NoYard = 0

// MaxDwellGap is the longest interval between two reports that is still
// credited as work; longer gaps are treated as missing data.
const MaxDwellGap = 3600 * time.Second

// Position is a planar coordinate pair as reported by a machine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionReport is the part of a telemetry report the tracker needs.
type PositionReport struct {
	Timestamp time.Time
	Position  Position
	YardID    int // NoYard when outside
}

// Change describes what a single report did to a machine.
type Change struct {
	PositionChanged bool
	YardChanged     bool
	EnteredYard     int // NoYard if none
	LeftYard        int // NoYard if none
	DwellSeconds    float64
}

// Machine tracks the last known position, yard membership and per-yard
// dwell of one cleaning machine.
type Machine struct {
	ID            int
	Position      Position
	LastUpdate    time.Time // zero before the first report
	CurrentYard   int
	PreviousYard  int
	YardEntryTime time.Time // set iff CurrentYard != NoYard
	DwellByYard   map[int]float64
}

func NewMachine(id int) *Machine {
	return &Machine{
		ID:          id,
		DwellByYard: make(map[int]float64),
	}
}

// ApplyReport moves the machine to the reported position and yard and
// credits dwell to the yard the machine was in before this report.
// Position and LastUpdate are always updated.
func (m *Machine) ApplyReport(r PositionReport) Change {
	var ch Change

	if m.Position != r.Position {
		ch.PositionChanged = true
	}
	m.Position = r.Position

	switch {
	case m.CurrentYard != r.YardID:
		ch.YardChanged = true
		if m.CurrentYard != NoYard && !m.YardEntryTime.IsZero() {
			ch.LeftYard = m.CurrentYard
			if dwell := m.dwellUntil(r.Timestamp); dwell > 0 {
				m.DwellByYard[m.CurrentYard] += dwell
				ch.DwellSeconds = dwell
			}
		}

		m.PreviousYard = m.CurrentYard
		m.CurrentYard = r.YardID
		if r.YardID != NoYard {
			m.YardEntryTime = r.Timestamp
			ch.EnteredYard = r.YardID
		} else {
			m.YardEntryTime = time.Time{}
		}

	case m.CurrentYard != NoYard && !m.YardEntryTime.IsZero():
		if dwell := m.dwellUntil(r.Timestamp); dwell > 0 {
			m.DwellByYard[m.CurrentYard] += dwell
			ch.DwellSeconds = dwell
		}
	}

	m.LastUpdate = r.Timestamp
	return ch
}

// dwellUntil returns the seconds elapsed since LastUpdate, or 0 when there
// is no previous report, the clock went backwards or the gap is too long.
func (m *Machine) dwellUntil(t time.Time) float64 {
	if m.LastUpdate.IsZero() {
		return 0
	}
	delta := t.Sub(m.LastUpdate)
	if delta < 0 || delta > MaxDwellGap {
		return 0
	}
	return delta.Seconds()
}

// InYard reports whether the machine is currently inside a yard.
func (m *Machine) InYard() bool { return m.CurrentYard != NoYard }

// DwellIn returns the accumulated work seconds in the given yard.
func (m *Machine) DwellIn(yardID int) float64 { return m.DwellByYard[yardID] }

// YardsWorked is the number of distinct yards the machine has been credited in.
func (m *Machine) YardsWorked() int { return len(m.DwellByYard) }
