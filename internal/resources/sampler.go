package resources

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// Default memory budget when no GOMEMLIMIT is configured. Headroom is
// reported against this so the planner's memory factors stay meaningful
// on unconstrained hosts.
const defaultMemoryBudgetBytes = 4 << 30

// Sampler produces Snapshots for the planner. Core count and memory
// headroom are read from the Go runtime; low-power, thermal, and
// user-idle signals come from whatever platform integration feeds the
// setters (operator config by default).
type Sampler struct {
	budget int64

	mu       sync.RWMutex
	lowPower bool
	thermal  ThermalState
	userIdle bool
	lastMem  uint64
}

// NewSampler creates a Sampler. The memory budget is taken from
// GOMEMLIMIT when set, otherwise a fixed default applies.
func NewSampler() *Sampler {
	budget := int64(defaultMemoryBudgetBytes)
	if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
		budget = goMemLimit
		logging.Info("Resource sampler using GOMEMLIMIT: %d bytes (%.1f MB)", budget, float64(budget)/(1024*1024))
	}

	return &Sampler{
		budget:   budget,
		userIdle: true,
	}
}

// SetLowPowerMode records the platform low-power signal.
func (s *Sampler) SetLowPowerMode(on bool) {
	s.mu.Lock()
	s.lowPower = on
	s.mu.Unlock()
}

// SetThermalState records the platform thermal pressure signal.
func (s *Sampler) SetThermalState(ts ThermalState) {
	s.mu.Lock()
	s.thermal = ts
	s.mu.Unlock()
}

// SetUserIdle records whether the user is currently interacting with
// the machine.
func (s *Sampler) SetUserIdle(idle bool) {
	s.mu.Lock()
	s.userIdle = idle
	s.mu.Unlock()
}

// Snapshot samples current conditions.
func (s *Sampler) Snapshot() Snapshot {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	s.mu.Lock()
	s.lastMem = stats.Alloc
	lowPower := s.lowPower
	thermal := s.thermal
	userIdle := s.userIdle
	s.mu.Unlock()

	headroom := s.budget - int64(stats.Alloc)
	if headroom < 0 {
		headroom = 0
	}
	metrics.MemoryUsageRatio.Set(float64(stats.Alloc) / float64(s.budget))

	return Snapshot{
		// GOMAXPROCS tracks container CPU limits on Go 1.19+.
		CoreCount:         runtime.GOMAXPROCS(0),
		LowPowerMode:      lowPower,
		Thermal:           thermal,
		AvailableMemoryMB: int(headroom / (1024 * 1024)),
		UserIdle:          userIdle,
	}
}

// Watch re-samples on an interval and hands each snapshot to apply,
// until stop is closed. The scheduler uses this for periodic re-sizing.
func (s *Sampler) Watch(interval time.Duration, stop <-chan struct{}, apply func(Snapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			apply(s.Snapshot())
		case <-stop:
			return
		}
	}
}
