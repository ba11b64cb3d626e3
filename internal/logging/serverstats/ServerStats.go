package serverstats

import (
	"math"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/logging"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

var startTime = time.Now()
var dataDir = "."
var currentTraffic trafficInfo
var cpuMonitor sync.Once

type trafficInfo struct {
	Total          uint64
	Chunks         uint64
	Files          uint64
	Mutex          sync.RWMutex
	RecordingSince int64
}

// Stats is the content of the health endpoint
type Stats struct {
	Uptime          int64  `json:"uptime"`
	TrafficBytes    uint64 `json:"traffic_bytes"`
	ChunksReceived  uint64 `json:"chunks_received"`
	FilesAssembled  uint64 `json:"files_assembled"`
	RecordingSince  int64  `json:"recording_since"`
	ActiveSessions  int    `json:"active_sessions"`
	CpuPercent      int    `json:"cpu_percent"`
	MemoryUsed      uint64 `json:"memory_used"`
	MemoryTotal     uint64 `json:"memory_total"`
	MemoryPercent   int    `json:"memory_percent"`
	DiskFree        uint64 `json:"disk_free"`
	DiskTotal       uint64 `json:"disk_total"`
	DiskPercent     int    `json:"disk_percent"`
	StorageBackend  string `json:"storage_backend"`
	DatabaseBackend string `json:"database_backend"`
}

// Init initializes the server stats. dataDir is the directory used for the disk statistics
func Init(dir string) {
	startTime = time.Now()
	dataDir = dir
	ClearTraffic()
	cpuMonitor.Do(monitorCpuUsage)
}

func monitorCpuUsage() {
	// continuously run, as GetCpuUsage only reports the
	// percentage since the last call
	go func() {
		for {
			_ = GetCpuUsage()
			time.Sleep(time.Minute)
		}
	}()
}

// ClearTraffic resets the traffic counters
func ClearTraffic() {
	currentTraffic.Mutex.Lock()
	defer currentTraffic.Mutex.Unlock()
	currentTraffic.Total = 0
	currentTraffic.Chunks = 0
	currentTraffic.Files = 0
	currentTraffic.RecordingSince = time.Now().Unix()
}

// GetUptime returns the uptime of the server in seconds
func GetUptime() int64 {
	return time.Since(startTime).Milliseconds() / 1000
}

// GetCurrentTraffic returns the received bytes and the time the recording started
func GetCurrentTraffic() (uint64, int64) {
	currentTraffic.Mutex.RLock()
	defer currentTraffic.Mutex.RUnlock()
	return currentTraffic.Total, currentTraffic.RecordingSince
}

// AddChunk adds a received chunk to the traffic counter
func AddChunk(bytes uint64) {
	currentTraffic.Mutex.Lock()
	defer currentTraffic.Mutex.Unlock()
	currentTraffic.Total = currentTraffic.Total + bytes
	currentTraffic.Chunks++
}

// AddFile increases the counter of assembled files
func AddFile() {
	currentTraffic.Mutex.Lock()
	defer currentTraffic.Mutex.Unlock()
	currentTraffic.Files++
}

// GetMemoryInfo returns information about the memory usage
func GetMemoryInfo() (uint64, uint64, uint64, int) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logging.LogError("Could not read memory usage", err)
		return 0, 0, 0, 0
	}
	return memInfo.Free, memInfo.Used, memInfo.Total, percent(memInfo.Used, memInfo.Total)
}

// GetDiskInfo returns information about the disk usage of the data directory
func GetDiskInfo() (uint64, uint64, uint64, int) {
	diskInfo, err := disk.Usage(dataDir)
	if err != nil {
		logging.LogError("Could not read disk usage", err)
		return 0, 0, 0, 0
	}
	return diskInfo.Free, diskInfo.Used, diskInfo.Total, percent(diskInfo.Used, diskInfo.Total)
}

// GetCpuUsage returns the current CPU usage in percent
func GetCpuUsage() int {
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		logging.LogError("Could not read CPU usage", err)
		return 0
	}
	return int(math.Round(usage[0]))
}

func percent(used, total uint64) int {
	if total == 0 {
		return 0
	}
	return int((float64(used) / float64(total)) * 100)
}

// Get collects all statistics. activeSessions, storage and database are provided by the caller
func Get(activeSessions int, storage, database string) Stats {
	currentTraffic.Mutex.RLock()
	result := Stats{
		Uptime:          GetUptime(),
		TrafficBytes:    currentTraffic.Total,
		ChunksReceived:  currentTraffic.Chunks,
		FilesAssembled:  currentTraffic.Files,
		RecordingSince:  currentTraffic.RecordingSince,
		ActiveSessions:  activeSessions,
		StorageBackend:  storage,
		DatabaseBackend: database,
	}
	currentTraffic.Mutex.RUnlock()
	result.CpuPercent = GetCpuUsage()
	_, result.MemoryUsed, result.MemoryTotal, result.MemoryPercent = GetMemoryInfo()
	result.DiskFree, _, result.DiskTotal, result.DiskPercent = GetDiskInfo()
	return result
}
