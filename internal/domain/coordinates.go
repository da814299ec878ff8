package domain

// Immutable geographic position. Altitude defaults to 0 when the source omits it.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinate) CoordsToList() []float64 { return []float64{c.Longitude, c.Latitude} }

// A single position report from the device GPS.
// Accuracy is the reported radius in meters; 0 means the device did not report one.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Coordinate returns the fix position without accuracy metadata.
func (f Fix) Coordinate() Coordinate {
	return Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}
