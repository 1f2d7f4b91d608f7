package web

import (
	"encoding/json"

	"github.com/sweeney/ac-mqtt-bridge/internal/status"
)

// DiagnosticsJSON is served at /status.json.
type DiagnosticsJSON struct {
	status.StatusJSON
	Unit    UnitJSON    `json:"unit"`
	Network NetworkJSON `json:"network"`
	System  SystemJSON  `json:"system"`
}

// UnitJSON describes the attached AC unit.
type UnitJSON struct {
	SerialNumber string `json:"serial_number"`
}

// NetworkJSON is the JSON representation of the link.
type NetworkJSON struct {
	Interface string `json:"interface"`
	Up        bool   `json:"up"`
	IP        string `json:"ip"`
	Mask      string `json:"mask"`
	Gateway   string `json:"gateway"`
	MAC       string `json:"mac"`
	SSID      string `json:"ssid"`
	RSSI      int    `json:"rssi"`
}

// SystemJSON is the JSON representation of host and runtime metrics.
type SystemJSON struct {
	CPUModel        string  `json:"cpu_model"`
	CPUMHz          float64 `json:"cpu_mhz"`
	CPUCores        int     `json:"cpu_cores"`
	GoVersion       string  `json:"go_version"`
	Platform        string  `json:"platform"`
	Kernel          string  `json:"kernel"`
	HeapAlloc       uint64  `json:"heap_alloc"`
	HeapSys         uint64  `json:"heap_sys"`
	HeapFragPercent float64 `json:"heap_fragmentation_percent"`
	Goroutines      int     `json:"goroutines"`
	MemTotal        uint64  `json:"mem_total"`
	MemAvailable    uint64  `json:"mem_available"`
	BinarySize      int64   `json:"binary_size"`
	DiskTotal       uint64  `json:"disk_total"`
	DiskFree        uint64  `json:"disk_free"`
}

func formatJSON(p page) []byte {
	sys := p.System
	dj := DiagnosticsJSON{
		StatusJSON: status.ToJSON(p.Snapshot),
		Unit:       UnitJSON{SerialNumber: p.SerialNumber},
		Network: NetworkJSON{
			Interface: p.Network.Interface,
			Up:        p.Network.Up,
			IP:        p.Network.IP,
			Mask:      p.Network.Mask,
			Gateway:   p.Network.Gateway,
			MAC:       p.Network.MAC,
			SSID:      p.Network.SSID,
			RSSI:      p.Network.RSSI,
		},
		System: SystemJSON{
			CPUModel:        sys.CPUModel,
			CPUMHz:          sys.CPUMHz,
			CPUCores:        sys.CPUCores,
			GoVersion:       sys.GoVersion,
			Platform:        sys.Platform,
			Kernel:          sys.Kernel,
			HeapAlloc:       sys.HeapAlloc,
			HeapSys:         sys.HeapSys,
			HeapFragPercent: sys.HeapFragmentation(),
			Goroutines:      sys.Goroutines,
			MemTotal:        sys.MemTotal,
			MemAvailable:    sys.MemAvailable,
			BinarySize:      sys.BinarySize,
			DiskTotal:       sys.DiskTotal,
			DiskFree:        sys.DiskFree,
		},
	}

	data, _ := json.MarshalIndent(dj, "", "  ")
	return data
}
