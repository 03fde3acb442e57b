package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vozcredit/voz-gateway/pkg/gateway/live/sessions"
)

// StatusHandler reports process and host health for operators.
type StatusHandler struct {
	StartTime time.Time
	Sessions  *sessions.Tracker
}

type statusResp struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	Goroutines     int     `json:"goroutines"`
	ActiveSessions int     `json:"active_sessions"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	MemUsedBytes   uint64  `json:"mem_used_bytes"`
	MemTotalBytes  uint64  `json:"mem_total_bytes"`
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResp{
		UptimeSeconds:  int64(time.Since(h.StartTime).Seconds()),
		Goroutines:     runtime.NumGoroutine(),
		ActiveSessions: h.Sessions.Count(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		resp.CPUPercent = percentages[0]
	}
	if virtualMem, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedPercent = virtualMem.UsedPercent
		resp.MemUsedBytes = virtualMem.Used
		resp.MemTotalBytes = virtualMem.Total
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	resp.HeapAllocBytes = ms.HeapAlloc

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
