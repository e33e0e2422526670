package model

import (
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	Report          = messages.Report
	YardRecord      = messages.YardRecord
	TransitionEvent = messages.TransitionEvent
	Frame           = messages.Frame
	Snapshot        = messages.Snapshot
	Yard            = entities.Yard
	Machine         = entities.Machine
	Position        = entities.Position
	Band            = entities.Band
)

const (
	NoYard  = entities.NoYard
	Band0   = entities.Band0
	Band100 = entities.Band100
)
