package telemetry

import "time"

// Accelerator is one accelerator device observed at sample time.
type Accelerator struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	MemoryTotal uint64  `json:"memory_total"`
	MemoryUsed  uint64  `json:"memory_used"`
	Utilization float64 `json:"utilization"`
}

// Sample is one point-in-time snapshot of system resource metrics.
// Immutable once recorded.
type Sample struct {
	Timestamp          time.Time     `json:"timestamp"`
	CPUPercent         float64       `json:"cpu_percent"`
	CPUCount           int           `json:"cpu_count"`
	CPUFreqMHz         float64       `json:"cpu_freq_mhz"`
	MemoryTotal        uint64        `json:"memory_total"`
	MemoryUsed         uint64        `json:"memory_used"`
	MemoryAvailable    uint64        `json:"memory_available"`
	MemoryPercent      float64       `json:"memory_percent"`
	DiskTotal          uint64        `json:"disk_total"`
	DiskUsed           uint64        `json:"disk_used"`
	DiskFree           uint64        `json:"disk_free"`
	DiskPercent        float64       `json:"disk_percent"`
	NetworkBytesSent   uint64        `json:"network_bytes_sent"`
	NetworkBytesRecv   uint64        `json:"network_bytes_recv"`
	NetworkPacketsSent uint64        `json:"network_packets_sent"`
	NetworkPacketsRecv uint64        `json:"network_packets_recv"`
	CPUTempC           *float64      `json:"cpu_temp_c,omitempty"`
	Accelerators       []Accelerator `json:"accelerators"`
	ProcessCount       int           `json:"process_count"`
	BootTime           time.Time     `json:"boot_time"`
}

// Averages is the mean of percentage metrics plus per-second network
// throughput over a qualifying window of samples.
type Averages struct {
	CPUPercent        float64 `json:"avg_cpu_percent"`
	MemoryPercent     float64 `json:"avg_memory_percent"`
	DiskPercent       float64 `json:"avg_disk_percent"`
	NetworkSentPerSec float64 `json:"avg_network_bytes_sent_per_sec"`
	NetworkRecvPerSec float64 `json:"avg_network_bytes_recv_per_sec"`
	SampleCount       int     `json:"sample_count"`
}

// Trend is the signed newest-minus-oldest delta over a bounded recent
// window. A coarse rising/falling signal, not a regression fit.
type Trend struct {
	CPUDelta    float64 `json:"cpu_delta"`
	MemoryDelta float64 `json:"memory_delta"`
	Window      int     `json:"window"`
}

// ResourceView groups a sample for the /system/resources endpoint.
type ResourceView struct {
	CPU struct {
		Usage     float64 `json:"cpu_usage"`
		Count     int     `json:"cpu_count"`
		Frequency float64 `json:"cpu_frequency"`
	} `json:"cpu"`
	Memory struct {
		Total     uint64  `json:"memory_total"`
		Used      uint64  `json:"memory_used"`
		Available uint64  `json:"memory_available"`
		Percent   float64 `json:"memory_percent"`
	} `json:"memory"`
	Disk struct {
		Total   uint64  `json:"disk_total"`
		Used    uint64  `json:"disk_used"`
		Free    uint64  `json:"disk_free"`
		Percent float64 `json:"disk_percent"`
	} `json:"disk"`
	Accelerators []Accelerator `json:"gpu"`
	Network      struct {
		BytesSent   uint64 `json:"bytes_sent"`
		BytesRecv   uint64 `json:"bytes_recv"`
		PacketsSent uint64 `json:"packets_sent"`
		PacketsRecv uint64 `json:"packets_recv"`
	} `json:"network"`
	System struct {
		BootTime      time.Time `json:"boot_time"`
		ProcessCount  int       `json:"process_count"`
		UptimeSeconds float64   `json:"uptime_seconds"`
	} `json:"system"`
}

// Resources folds the sample into the grouped view.
func (s Sample) Resources() ResourceView {
	var v ResourceView
	v.CPU.Usage = s.CPUPercent
	v.CPU.Count = s.CPUCount
	v.CPU.Frequency = s.CPUFreqMHz
	v.Memory.Total = s.MemoryTotal
	v.Memory.Used = s.MemoryUsed
	v.Memory.Available = s.MemoryAvailable
	v.Memory.Percent = s.MemoryPercent
	v.Disk.Total = s.DiskTotal
	v.Disk.Used = s.DiskUsed
	v.Disk.Free = s.DiskFree
	v.Disk.Percent = s.DiskPercent
	v.Accelerators = s.Accelerators
	if v.Accelerators == nil {
		v.Accelerators = []Accelerator{}
	}
	v.Network.BytesSent = s.NetworkBytesSent
	v.Network.BytesRecv = s.NetworkBytesRecv
	v.Network.PacketsSent = s.NetworkPacketsSent
	v.Network.PacketsRecv = s.NetworkPacketsRecv
	v.System.BootTime = s.BootTime
	v.System.ProcessCount = s.ProcessCount
	if !s.BootTime.IsZero() {
		v.System.UptimeSeconds = s.Timestamp.Sub(s.BootTime).Seconds()
	}
	return v
}
