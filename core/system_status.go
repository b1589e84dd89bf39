package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StorePinger is satisfied by every AccountRepository.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// SystemStatus is the /healthz payload.
type SystemStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Redis  string `json:"redis"`
	Memory struct {
		UsedBytes  uint64 `json:"usedBytes"`
		TotalBytes uint64 `json:"totalBytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptimeSeconds"`
}

// Healthy reports whether the process can serve account requests. Redis only backs the
// login throttle, so its outage degrades nothing here.
func (s SystemStatus) Healthy() bool { return s.Status == "ok" }

// HealthChecker checks the dependencies behind the API.
type HealthChecker struct {
	store     StorePinger
	redis     redis.Cmdable // nil when throttling is disabled
	startedAt time.Time
	timeout   time.Duration
}

func NewHealthChecker(store StorePinger, rdb redis.Cmdable, startedAt time.Time) *HealthChecker {
	return &HealthChecker{store: store, redis: rdb, startedAt: startedAt, timeout: 2 * time.Second}
}

// Collect aggregates the current status. Dependency failures are reported in the payload.
func (h *HealthChecker) Collect(ctx context.Context) SystemStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	st := SystemStatus{Status: "ok", Store: "ok", Redis: "disabled"}
	if err := h.store.Ping(ctx); err != nil {
		st.Status = "degraded"
		st.Store = "unavailable"
	}
	if h.redis != nil {
		st.Redis = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			st.Redis = "unavailable"
		}
	}

	// best-effort, zero when /proc is missing
	st.Memory.UsedBytes, st.Memory.TotalBytes = readMemInfo()

	if !h.startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())
	}
	return st
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal * 1024
		if memAvailable <= memTotal {
			used = (memTotal - memAvailable) * 1024
		}
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
