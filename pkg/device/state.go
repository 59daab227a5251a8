package device

import (
	"sync"

	"github.com/teslashibe/go-woofer/pkg/pose"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// State holds the authoritative pose of the device.
// Every access is a short copy-in/copy-out critical section; nothing blocks
// while the lock is held.
type State struct {
	mu       sync.Mutex
	snapshot pose.Snapshot
	revision uint64
}

// NewState creates a state holding the zero pose.
func NewState() *State {
	return &State{snapshot: pose.Zero()}
}

// NewStateWith creates a state holding the given pose.
func NewStateWith(s pose.Snapshot) *State {
	return &State{snapshot: s}
}

// Snapshot returns a copy of the current pose.
func (s *State) Snapshot() pose.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Read returns a copy of the current pose and its revision.
// The revision increases by one for every applied command.
func (s *State) Read() (pose.Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.revision
}

// Revision returns the number of commands applied so far.
func (s *State) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Apply computes the variant's post-state from the current pose and stores it.
// Readers see either the old pose or the new one, never a mix.
func (s *State) Apply(v protocol.Variant) (pose.Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = v.Apply(s.snapshot)
	s.revision++
	return s.snapshot, s.revision
}
