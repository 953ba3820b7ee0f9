package crate

// Temperature is the crate's thermometer reading. The upstream sensor
// reports degrees as a string and the wire format preserves that.
type Temperature struct {
	DegreesFahrenheit string `json:"degreesFahrenheit"`
}

// Coords is a latitude/longitude pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is the crate's reported position.
type Location struct {
	Coords Coords `json:"coords"`
	Zip    string `json:"zip"`
}

// SensorFlag reports whether a sensor crossed its configured threshold.
type SensorFlag struct {
	ThresholdExceeded bool `json:"thresholdExceeded"`
}

// Sensors groups the crate's threshold sensors.
type Sensors struct {
	Moisture    SensorFlag `json:"moisture"`
	Thermometer SensorFlag `json:"thermometer"`
	Photometer  SensorFlag `json:"photometer"`
}

// Telemetry is one sensor snapshot produced by a crate.
type Telemetry struct {
	Temp     Temperature `json:"temp"`
	Location Location    `json:"location"`
	Sensors  Sensors     `json:"sensors"`
}

// Sample is a telemetry reading submitted for a crate. Samples are the
// element type of the ingestion queue.
type Sample struct {
	CrateID   string    `json:"crateId"`
	Telemetry Telemetry `json:"telemetry"`
}

// Waypoint is one accepted telemetry sample recorded against a shipment.
// Waypoints are immutable once appended.
type Waypoint struct {
	Timestamp string    `json:"timestamp"`
	Telemetry Telemetry `json:"telemetry"`
}

// AcceptedTelemetryEvent is emitted after a telemetry sample has been
// applied to a crate and its active shipment. It is the payload broadcast
// to realtime subscribers.
type AcceptedTelemetryEvent struct {
	CrateID   string    `json:"crateId"`
	Telemetry Telemetry `json:"telemetry"`
	Timestamp string    `json:"timestamp"`
}

// Account identifies a known platform user resolved from a recipient email.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
