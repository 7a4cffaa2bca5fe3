package attendance

import (
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// SIMULATION MODE - Process-wide switch used to demo outage and holiday rules
// =============================================================================

type SimulationMode string

const (
	ModeNormal            SimulationMode = "NORMAL"
	ModeHoliday           SimulationMode = "HOLIDAY"
	ModeLockout           SimulationMode = "LOCKOUT"
	ModeUnlockRestriction SimulationMode = "UNLOCK_RESTRICTION"
)

// SimulationModes lists every valid mode.
var SimulationModes = []SimulationMode{ModeNormal, ModeHoliday, ModeLockout, ModeUnlockRestriction}

// ErrInvalidMode is returned for a mode outside SimulationModes.
var ErrInvalidMode = fmt.Errorf("%w: invalid simulation mode", ErrInvalidInput)

// ParseSimulationMode accepts any mode name, case-insensitively.
func ParseSimulationMode(s string) (SimulationMode, error) {
	m := SimulationMode(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range SimulationModes {
		if m == valid {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ModeSwitch holds the current simulation mode.
//
// A Set is visible to every Get that begins after Set returns. There is no
// other ordering guarantee; a marking decision must call Get once and use
// that snapshot throughout. UNLOCK_RESTRICTION stays active until replaced.
type ModeSwitch struct {
	mu   sync.RWMutex
	mode SimulationMode
}

// NewModeSwitch starts in initial, or NORMAL when initial is empty.
func NewModeSwitch(initial SimulationMode) *ModeSwitch {
	if initial == "" {
		initial = ModeNormal
	}
	return &ModeSwitch{mode: initial}
}

func (s *ModeSwitch) Get() SimulationMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Set replaces the mode. Invalid modes are rejected and leave it unchanged.
func (s *ModeSwitch) Set(mode SimulationMode) error {
	m, err := ParseSimulationMode(string(mode))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	return nil
}
