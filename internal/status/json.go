package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	BoxCount      uint32      `json:"box_count"`
	Proximity     string      `json:"proximity"`
	Angle         *AngleJSON  `json:"angle,omitempty"`
	AngleSensor   string      `json:"angle_sensor"`
	Mode          string      `json:"mode"`
	Network       NetworkJSON `json:"network"`
	Push          PushJSON    `json:"push"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Config        ConfigJSON  `json:"config"`
}

// AngleJSON is the last successful angle reading.
type AngleJSON struct {
	Value   int     `json:"value"`
	Raw     int     `json:"raw"`
	Degrees float64 `json:"degrees"`
}

// NetworkJSON reports wireless connectivity.
type NetworkJSON struct {
	State   string `json:"state"`
	Address string `json:"address,omitempty"`
}

// PushJSON reports the push channel.
type PushJSON struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs     int64  `json:"sample_ms"`
	PushMs       int64  `json:"push_ms"`
	ReportMs     int64  `json:"report_ms"`
	CollectorURL string `json:"collector_url"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		BoxCount:      snap.BoxCount,
		Proximity:     snap.Proximity.String(),
		AngleSensor:   "DISCONNECTED",
		Mode:          string(snap.Mode),
		Network:       NetworkJSON{State: string(snap.Connectivity), Address: snap.Address},
		Push:          PushJSON{Connected: snap.PushConnected, Broker: snap.Config.Broker},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			SampleMs:     snap.Config.SampleMs,
			PushMs:       snap.Config.PushMs,
			ReportMs:     snap.Config.ReportMs,
			CollectorURL: snap.Config.CollectorURL,
		},
	}
	if snap.AngleConnected {
		inner.AngleSensor = "CONNECTED"
	}
	if snap.Angle.Valid {
		inner.Angle = &AngleJSON{
			Value:   snap.Angle.Angle,
			Raw:     snap.Angle.Raw,
			Degrees: math.Round(snap.Angle.Degrees*10) / 10,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompact returns the JSON status on a single line, for streaming.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
	return data
}
