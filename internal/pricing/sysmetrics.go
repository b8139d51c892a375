package pricing

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// clockTicksPerSecond is the kernel's USER_HZ. Linux has reported 100 on
// every mainstream architecture for decades; reading it properly needs cgo
// or a sysconf syscall, so the constant is used instead.
const clockTicksPerSecond = 100.0

// SystemMetrics samples process CPU from /proc/self/stat, heap pressure from
// the Go runtime, and the 1-minute load average from /proc/loadavg. On
// non-Linux hosts the procfs reads fail quietly and report zero.
type SystemMetrics struct {
	mu       sync.Mutex
	lastWall time.Time
	lastCPU  float64 // seconds of utime+stime at lastWall
}

func NewSystemMetrics() *SystemMetrics {
	s := &SystemMetrics{}
	s.CPUPercent() // prime the delta baseline
	return s
}

// CPUPercent returns process CPU usage since the previous call, as a
// percentage of one core. First call (and any procfs failure) returns 0.
func (s *SystemMetrics) CPUPercent() float64 {
	cpu, ok := readProcessCPUSeconds()
	if !ok {
		return 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastWall.IsZero() {
		s.lastWall, s.lastCPU = now, cpu
		return 0
	}
	wallDelta := now.Sub(s.lastWall).Seconds()
	cpuDelta := cpu - s.lastCPU
	s.lastWall, s.lastCPU = now, cpu

	if wallDelta <= 0 || cpuDelta < 0 {
		return 0
	}
	return cpuDelta / wallDelta * 100.0
}

// HeapPercent returns heap in use as a fraction of heap obtained from the
// OS, in percent.
func (s *SystemMetrics) HeapPercent() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys) * 100.0
}

// LoadAverage returns the host 1-minute load average, or 0 when unreadable.
func (s *SystemMetrics) LoadAverage() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load
}

// readProcessCPUSeconds parses utime+stime (fields 14 and 15) out of
// /proc/self/stat. The comm field may contain spaces, so parsing starts
// after the closing paren.
func readProcessCPUSeconds() (float64, bool) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, false
	}
	raw := string(data)
	end := strings.LastIndexByte(raw, ')')
	if end < 0 || end+2 > len(raw) {
		return 0, false
	}
	fields := strings.Fields(raw[end+2:])
	// fields[0] is stat field 3 (state); utime and stime are 14 and 15.
	if len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return float64(utime+stime) / clockTicksPerSecond, true
}
