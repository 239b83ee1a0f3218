package logging

import (
	"fmt"
	"sync"
	"time"

	"github.com/iancoleman/orderedmap"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// ResourceUsage is a host utilization snapshot. Byte counters are cumulative.
type ResourceUsage struct {
	CPUPercent     float64
	MemoryPercent  float64
	DiskReadBytes  uint64
	DiskWriteBytes uint64
	NetBytesSent   uint64
	NetBytesRecv   uint64
}

// ResourceSampler supplies the resource_utilization block of each record.
type ResourceSampler interface {
	Sample() ResourceUsage
}

// SystemSampler reads host counters with gopsutil and reuses a sample for ttl.
type SystemSampler struct {
	mu   sync.Mutex
	ttl  time.Duration
	at   time.Time
	last ResourceUsage
}

func NewSystemSampler(ttl time.Duration) *SystemSampler {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &SystemSampler{ttl: ttl}
}

func (s *SystemSampler) Sample() ResourceUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.at.IsZero() && time.Since(s.at) < s.ttl {
		return s.last
	}

	var u ResourceUsage
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		u.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.MemoryPercent = vm.UsedPercent
	}
	if counters, err := disk.IOCounters(); err == nil {
		for _, c := range counters {
			u.DiskReadBytes += c.ReadBytes
			u.DiskWriteBytes += c.WriteBytes
		}
	}
	if counters, err := psnet.IOCounters(false); err == nil && len(counters) > 0 {
		u.NetBytesSent = counters[0].BytesSent
		u.NetBytesRecv = counters[0].BytesRecv
	}

	s.last = u
	s.at = time.Now()
	return u
}

func renderUsage(u ResourceUsage) *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.Set("cpu_percent", fmt.Sprintf("%.2f%%", u.CPUPercent))
	m.Set("memory_percent", fmt.Sprintf("%.2f%%", u.MemoryPercent))
	m.Set("disk_read_bytes", FormatBytes(u.DiskReadBytes))
	m.Set("disk_write_bytes", FormatBytes(u.DiskWriteBytes))
	m.Set("network_bytes_sent", FormatBytes(u.NetBytesSent))
	m.Set("network_bytes_received", FormatBytes(u.NetBytesRecv))
	return m
}
