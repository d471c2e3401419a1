//go:build linux

package services

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// loadShift is the fixed-point scale of sysinfo load averages
const loadShift = 1 << 16

func readSystemStats() SystemStats {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return SystemStats{}
	}

	load1 := float64(info.Loads[0]) / loadShift
	cpu := min(100, load1/float64(runtime.NumCPU())*100)

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit

	var ram float64
	if total > 0 {
		ram = float64(total-free) / float64(total) * 100
	}

	return SystemStats{
		CPUUsage:      cpu,
		RAMUsage:      ram,
		UptimeSeconds: int64(info.Uptime),
	}
}
