package mag

import "fmt"

// AxisReading is a single magnetometer sample in raw sensor counts.
type AxisReading struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Sub returns the per-axis difference r - o.
func (r AxisReading) Sub(o AxisReading) AxisReading {
	return AxisReading{X: r.X - o.X, Y: r.Y - o.Y, Z: r.Z - o.Z}
}

func (r AxisReading) String() string {
	return fmt.Sprintf("x=%d y=%d z=%d", r.X, r.Y, r.Z)
}

// Source is anything that can take one magnetometer sample.
type Source interface {
	Acquire() (AxisReading, error)
}
