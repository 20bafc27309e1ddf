package metrics

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessSample is a point-in-time resource reading for one OS process.
type ProcessSample struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	Cmdline    string    `json:"cmdline"`
	CPUPercent float64   `json:"cpuPercent"`
	MemoryRSS  uint64    `json:"memoryRss"`
	MemoryMB   float64   `json:"memoryMb"`
	NumThreads int32     `json:"numThreads"`
	CreatedAt  time.Time `json:"createdAt"`
	SampledAt  time.Time `json:"sampledAt"`
}

// SampleProcess reads cpu, memory and identity information for pid.
// Fields that the platform cannot report are left zero.
func SampleProcess(pid int) (ProcessSample, error) {
	if pid <= 0 {
		return ProcessSample{}, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessSample{}, fmt.Errorf("process %d: %w", pid, err)
	}
	s := ProcessSample{PID: int32(pid), SampledAt: time.Now()}
	if name, err := p.Name(); err == nil {
		s.Name = name
	}
	if cmd, err := p.Cmdline(); err == nil {
		s.Cmdline = cmd
	}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		s.MemoryRSS = mem.RSS
		s.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreads(); err == nil {
		s.NumThreads = n
	}
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		s.CreatedAt = time.UnixMilli(ms)
	}
	return s, nil
}
