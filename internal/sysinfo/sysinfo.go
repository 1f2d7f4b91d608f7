// Package sysinfo collects host and runtime diagnostics for the status page.
package sysinfo

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a fresh reading of host and process metrics. Fields that could not
// be read are left zero.
type Info struct {
	CPUModel string
	CPUMHz   float64
	CPUCores int

	GoVersion string
	OS        string
	Arch      string
	Platform  string
	Kernel    string

	HeapAlloc    uint64
	HeapSys      uint64
	HeapIdle     uint64
	HeapReleased uint64
	Goroutines   int
	NumGC        uint32

	MemTotal       uint64
	MemAvailable   uint64
	MemUsedPercent float64

	BinarySize int64
	DiskTotal  uint64
	DiskFree   uint64
}

// HeapFragmentation is the share of idle heap not returned to the OS, in percent.
func (i Info) HeapFragmentation() float64 {
	if i.HeapSys == 0 {
		return 0
	}
	return float64(i.HeapIdle-i.HeapReleased) / float64(i.HeapSys) * 100
}

// Collector reads Info.
type Collector interface {
	Collect(ctx context.Context) Info
}

// HostCollector reads Info from the running host.
type HostCollector struct {
	dataDir string
}

// NewHostCollector creates a collector that reports disk usage for dataDir.
func NewHostCollector(dataDir string) *HostCollector {
	return &HostCollector{dataDir: dataDir}
}

// Collect implements Collector. It never fails; unreadable values stay zero.
func (c *HostCollector) Collect(ctx context.Context) Info {
	info := Info{
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Goroutines: runtime.NumGoroutine(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.HeapAlloc = ms.HeapAlloc
	info.HeapSys = ms.HeapSys
	info.HeapIdle = ms.HeapIdle
	info.HeapReleased = ms.HeapReleased
	info.NumGC = ms.NumGC

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUMHz = cpus[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = n
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Platform = h.Platform + " " + h.PlatformVersion
		info.Kernel = h.KernelVersion
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemTotal = vm.Total
		info.MemAvailable = vm.Available
		info.MemUsedPercent = vm.UsedPercent
	}
	if exe, err := os.Executable(); err == nil {
		if fi, err := os.Stat(exe); err == nil {
			info.BinarySize = fi.Size()
		}
	}
	if c.dataDir != "" {
		if du, err := disk.UsageWithContext(ctx, c.dataDir); err == nil {
			info.DiskTotal = du.Total
			info.DiskFree = du.Free
		}
	}
	return info
}

// FakeCollector returns a fixed Info.
type FakeCollector struct {
	Info Info
}

// Collect implements Collector.
func (f FakeCollector) Collect(context.Context) Info {
	return f.Info
}
