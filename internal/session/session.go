// Package session holds the mode and run state of the client as an
// explicit value, changed only through named transitions.
//
// A Machine is not safe for concurrent use; the owner serializes access.
package session

import (
	"errors"
	"fmt"

	"botview/internal/types"
)

// ReplayFloor is the first candle index the replay strategy consumes. The
// service needs this many candles of history before it can decide.
const ReplayFloor = 21

var ErrInvalidLimit = errors.New("training limit out of range")

type Run struct {
	Running bool `json:"running"`
	// Generation changes whenever the mode's context is invalidated (mode
	// switch away, reset). In-flight work compares it before applying.
	Generation uint64 `json:"generation"`
	AccountID  int64  `json:"accountId"`
}

type ReplayState struct {
	Index   int  `json:"index"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Running bool `json:"running"`
}

// State is a copyable, serializable picture of the machine.
type State struct {
	Mode     types.Mode  `json:"mode"`
	Trading  Run         `json:"trading"`
	Training Run         `json:"training"`
	Replay   ReplayState `json:"replay"`
}

type Options struct {
	TradingAccount  int64
	TrainingAccount int64
	Limit           int
	Offset          int
}

type Machine struct {
	st State
}

// New returns a machine in the initial state: TRADING selected, both modes
// idle, replay at the floor.
func New(opts Options) (*Machine, error) {
	if opts.Limit < ReplayFloor {
		return nil, fmt.Errorf("%w: %d < %d", ErrInvalidLimit, opts.Limit, ReplayFloor)
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("negative replay offset %d", opts.Offset)
	}
	return &Machine{st: State{
		Mode:     types.ModeTrading,
		Trading:  Run{AccountID: opts.TradingAccount},
		Training: Run{AccountID: opts.TrainingAccount},
		Replay:   ReplayState{Index: ReplayFloor, Limit: opts.Limit, Offset: opts.Offset},
	}}, nil
}

func (m *Machine) run(mode types.Mode) *Run {
	if mode == types.ModeTraining {
		return &m.st.Training
	}
	return &m.st.Trading
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	s := m.st
	s.Replay.Running = s.Training.Running
	return s
}

func (m *Machine) Mode() types.Mode { return m.st.Mode }

func (m *Machine) Running(mode types.Mode) bool { return m.run(mode).Running }

func (m *Machine) Generation(mode types.Mode) uint64 { return m.run(mode).Generation }

func (m *Machine) AccountID(mode types.Mode) int64 { return m.run(mode).AccountID }

func (m *Machine) Replay() ReplayState { return m.Snapshot().Replay }

// Current reports whether work started under gen for mode may still apply
// its results.
func (m *Machine) Current(mode types.Mode, gen uint64) bool {
	return m.st.Mode == mode && m.run(mode).Generation == gen
}

// SelectMode makes mode active. The previously active mode is forced idle
// and its generation advances. It reports whether anything changed; on
// change the caller must drop mode-scoped caches.
func (m *Machine) SelectMode(mode types.Mode) bool {
	if mode == m.st.Mode {
		return false
	}
	prev := m.run(m.st.Mode)
	prev.Running = false
	prev.Generation++
	m.st.Mode = mode
	return true
}

// Start moves mode to Running. Only the active mode may run, and TRAINING
// needs a non-empty candle set.
func (m *Machine) Start(mode types.Mode, candles int) error {
	if mode != m.st.Mode {
		return fmt.Errorf("%w: %s", types.ErrNotActiveMode, mode)
	}
	if mode == types.ModeTraining && candles == 0 {
		return types.ErrEmptyDataset
	}
	m.run(mode).Running = true
	return nil
}

// Pause is always permitted.
func (m *Machine) Pause(mode types.Mode) {
	m.run(mode).Running = false
}

// ApplyReplay stores the service's next index, clamped into
// [ReplayFloor, Limit]. done ends the replay run regardless of its flag.
func (m *Machine) ApplyReplay(nextIndex int, done bool) {
	m.st.Replay.Index = clamp(nextIndex, ReplayFloor, m.st.Replay.Limit)
	if done {
		m.st.Training.Running = false
	}
}

// Reset returns replay to the floor, idles the active mode and invalidates
// its in-flight work.
func (m *Machine) Reset() {
	m.st.Replay.Index = ReplayFloor
	r := m.run(m.st.Mode)
	r.Running = false
	r.Generation++
}

// SetLimit changes the training window. Only allowed while TRAINING is idle.
func (m *Machine) SetLimit(limit int) error {
	if limit < ReplayFloor {
		return fmt.Errorf("%w: %d < %d", ErrInvalidLimit, limit, ReplayFloor)
	}
	if m.st.Training.Running {
		return errors.New("cannot change training limit while training runs")
	}
	m.st.Replay.Limit = limit
	m.st.Replay.Index = clamp(m.st.Replay.Index, ReplayFloor, limit)
	return nil
}

// Invalidate advances mode's generation without other changes. Used when
// the symbol changes under a mode.
func (m *Machine) Invalidate(mode types.Mode) {
	r := m.run(mode)
	r.Running = false
	r.Generation++
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
