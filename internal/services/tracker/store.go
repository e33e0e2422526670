package tracker

import (
	"fmt"
	"slices"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

// YardStore owns the yards of one run, keyed by id. It is written only by
// the goroutine that drives the Engine.
type YardStore struct {
	byID map[int]*entities.Yard
	ids  []int // ascending
}

func NewYardStore(yards []*entities.Yard) (*YardStore, error) {
	s := &YardStore{byID: make(map[int]*entities.Yard, len(yards))}
	for _, y := range yards {
		if y == nil {
			continue
		}
		if _, dup := s.byID[y.ID]; dup {
			return nil, fmt.Errorf("duplicate yard id %d", y.ID)
		}
		s.byID[y.ID] = y
		s.ids = append(s.ids, y.ID)
	}
	slices.Sort(s.ids)
	return s, nil
}

func (s *YardStore) Get(id int) (*entities.Yard, bool) {
	y, ok := s.byID[id]
	return y, ok
}

func (s *YardStore) Len() int { return len(s.ids) }

// Each visits yards in ascending id order.
func (s *YardStore) Each(fn func(*entities.Yard)) {
	for _, id := range s.ids {
		fn(s.byID[id])
	}
}

// MachineStore holds every machine seen so far; machines are created on
// first sight and never removed.
type MachineStore struct {
	byID map[int]*entities.Machine
	ids  []int // ascending
}

func NewMachineStore() *MachineStore {
	return &MachineStore{byID: make(map[int]*entities.Machine)}
}

// GetOrCreate returns the machine and whether it was just created.
func (s *MachineStore) GetOrCreate(id int) (*entities.Machine, bool) {
	if m, ok := s.byID[id]; ok {
		return m, false
	}
	m := entities.NewMachine(id)
	s.byID[id] = m
	i, _ := slices.BinarySearch(s.ids, id)
	s.ids = slices.Insert(s.ids, i, id)
	return m, true
}

func (s *MachineStore) Get(id int) (*entities.Machine, bool) {
	m, ok := s.byID[id]
	return m, ok
}

func (s *MachineStore) Len() int { return len(s.ids) }

// Each visits machines in ascending id order.
func (s *MachineStore) Each(fn func(*entities.Machine)) {
	for _, id := range s.ids {
		fn(s.byID[id])
	}
}
