package status

import "time"

// StatusJSON is the JSON representation of a Snapshot.
type StatusJSON struct {
	Hostname      string     `json:"hostname"`
	Version       string     `json:"version"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	LastStatus    string     `json:"last_status,omitempty"`
	LinkUp        bool       `json:"link_up"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of Counts.
type CountsJSON struct {
	StatusPublished   int `json:"status_published"`
	StatusDropped     int `json:"status_dropped"`
	CommandsForwarded int `json:"commands_forwarded"`
	CommandsRejected  int `json:"commands_rejected"`
	Reconnects        int `json:"reconnects"`
	Polls             int `json:"polls"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HTTPAddr   string `json:"http_addr"`
	SerialPort string `json:"serial_port"`
	DataDir    string `json:"data_dir"`
	Interface  string `json:"interface"`
}

// ToJSON converts a snapshot for encoding.
func ToJSON(snap Snapshot) StatusJSON {
	sj := StatusJSON{
		Hostname:      snap.Config.Hostname,
		Version:       snap.Config.Version,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LinkUp:        snap.LinkUp,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			StatusPublished:   snap.Counts.StatusPublished,
			StatusDropped:     snap.Counts.StatusDropped,
			CommandsForwarded: snap.Counts.CommandsForwarded,
			CommandsRejected:  snap.Counts.CommandsRejected,
			Reconnects:        snap.Counts.Reconnects,
			Polls:             snap.Counts.Polls,
		},
		Config: ConfigJSON{
			HTTPAddr:   snap.Config.HTTPAddr,
			SerialPort: snap.Config.SerialPort,
			DataDir:    snap.Config.DataDir,
			Interface:  snap.Config.Interface,
		},
	}
	if !snap.LastStatusAt.IsZero() {
		sj.LastStatus = snap.LastStatusAt.UTC().Format(time.RFC3339)
	}
	return sj
}
