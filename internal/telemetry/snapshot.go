package telemetry

import (
	"time"

	"github.com/relabs-tech/doorwatch/internal/door"
	"github.com/relabs-tech/doorwatch/internal/mag"
)

// Snapshot is the JSON document published once per monitoring iteration.
type Snapshot struct {
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Z          int       `json:"z"`
	State      string    `json:"state"`      // "open" / "closed"
	StateCode  int       `json:"state_code"` // same value as PinDoorState
	Calibrated bool      `json:"calibrated"`
	Stale      bool      `json:"stale"` // last acquisition failed, values are from an earlier sample
	Time       time.Time `json:"time"`
}

// NewSnapshot builds a Snapshot from an adjusted reading and its state.
func NewSnapshot(adjusted mag.AxisReading, state door.State, calibrated, stale bool, t time.Time) Snapshot {
	return Snapshot{
		X:          adjusted.X,
		Y:          adjusted.Y,
		Z:          adjusted.Z,
		State:      state.String(),
		StateCode:  int(state),
		Calibrated: calibrated,
		Stale:      stale,
		Time:       t.UTC(),
	}
}
