package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Ticks         uint64      `json:"ticks"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Inputs        []InputJSON `json:"inputs"`
	Config        ConfigJSON  `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool           `json:"connected"`
	Broker    string         `json:"broker"`
	Buffered  int            `json:"buffered"`
	Dropped   map[string]int `json:"dropped,omitempty"`
}

// InputJSON is the JSON representation of one input.
type InputJSON struct {
	Name           string `json:"name"`
	Kind           string `json:"kind,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
	Active         bool   `json:"active"`
	Activations    int    `json:"activations"`
	Deactivations  int    `json:"deactivations"`
	DispatchErrors int    `json:"dispatch_errors"`
	ReadErrors     int    `json:"read_errors"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	wiring := make(map[string]InputConfig, len(snap.Config.Inputs))
	for _, in := range snap.Config.Inputs {
		wiring[in.Name] = in
	}

	inputs := make([]InputJSON, 0, len(snap.Inputs))
	for _, in := range snap.Inputs {
		w := wiring[in.Name]
		inputs = append(inputs, InputJSON{
			Name:           in.Name,
			Kind:           w.Kind,
			Strategy:       w.Strategy,
			Active:         in.Active,
			Activations:    in.Counts.Activations,
			Deactivations:  in.Counts.Deactivations,
			DispatchErrors: in.Counts.DispatchErrors,
			ReadErrors:     in.Counts.ReadErrors,
		})
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Ticks:         snap.Ticks,
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
			Dropped:   snap.MQTTDropped,
		},
		Inputs:        inputs,
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
