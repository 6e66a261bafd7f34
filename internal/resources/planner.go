package resources

// Mode selects how aggressively indexing may use the machine.
type Mode string

const (
	// ModeFullSpeed uses nearly every core.
	ModeFullSpeed Mode = "fullspeed"
	// ModeBalanced uses half the cores.
	ModeBalanced Mode = "balanced"
	// ModeBackground uses a quarter of the cores and yields to the user.
	ModeBackground Mode = "background"
)

// ParseMode maps a configuration string to a Mode, defaulting to balanced.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeFullSpeed, ModeBalanced, ModeBackground:
		return Mode(s)
	default:
		return ModeBalanced
	}
}

// ThermalState mirrors the platform thermal pressure ladder.
type ThermalState int

const (
	ThermalNominal ThermalState = iota
	ThermalFair
	ThermalSerious
	ThermalCritical
)

// Snapshot is a point-in-time view of system conditions. It is plain
// data: sampling is the caller's job (see Sampler), the planner only
// does arithmetic on it.
type Snapshot struct {
	CoreCount         int
	LowPowerMode      bool
	Thermal           ThermalState
	AvailableMemoryMB int
	UserIdle          bool
}

// InitialConcurrency returns the permit ceiling for a mode before any
// live resource signals are applied.
func InitialConcurrency(mode Mode, coreCount int) int {
	if coreCount < 1 {
		coreCount = 1
	}
	switch mode {
	case ModeFullSpeed:
		return max(2, coreCount-2)
	case ModeBackground:
		return max(1, coreCount/4)
	default: // balanced
		return max(1, coreCount/2)
	}
}

// ComputeConcurrency derives the recommended permit count from a
// snapshot and a requested mode. Pure function, no I/O.
//
// Low-power mode overrides the requested mode to background before
// anything else. Critical thermal state and severe memory pressure
// short-circuit straight to 1. Background mode is never reduced further
// by user activity.
func ComputeConcurrency(snap Snapshot, mode Mode) int {
	if snap.LowPowerMode {
		mode = ModeBackground
	}

	n := InitialConcurrency(mode, snap.CoreCount)

	switch snap.Thermal {
	case ThermalFair:
		n = n * 3 / 4
	case ThermalSerious:
		n = n / 2
	case ThermalCritical:
		return 1
	}

	if snap.AvailableMemoryMB < 512 {
		return 1
	}
	if snap.AvailableMemoryMB < 1024 {
		n = n / 2
	}

	if !snap.UserIdle && mode != ModeBackground {
		n = n * 2 / 3
	}

	if n < 1 {
		n = 1
	}
	return n
}
