// Package swarmstats implements the two shared append-only registers
// a peer controller publishes to on every timer tick: the Rate
// register (the Choke Manager's input) and the Status register (the
// Status Process's input). Both are "transactional variables" — a
// lock held only for the write, with the consumer swapping the
// accumulated batch out on its own cadence so writers never block on
// a slow reader.
package swarmstats

import "sync"

// RateSample is one peer's contribution to a tick of the Rate
// register, appended by the controller's timer-tick handler.
type RateSample struct {
	PeerID         [20]byte
	UpBPS          float64
	DownBPS        float64
	PeerInterested bool
	IsSeeder       bool
	PeerChoke      bool
	Snubbed        bool
}

// RateRegister accumulates RateSamples for the Choke Manager to drain
// on its own schedule.
type RateRegister struct {
	mu      sync.Mutex
	samples []RateSample
}

// NewRateRegister returns an empty register.
func NewRateRegister() *RateRegister { return &RateRegister{} }

// Append adds one sample. Safe for concurrent use by many peer
// controllers.
func (r *RateRegister) Append(s RateSample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Drain atomically swaps out and returns everything accumulated since
// the last Drain.
func (r *RateRegister) Drain() []RateSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.samples
	r.samples = nil
	return out
}

// StatusSample is one torrent's contribution to a tick of the Status
// register.
type StatusSample struct {
	InfoHash  [20]byte
	UpBytes   int64
	DownBytes int64
}

// StatusRegister accumulates StatusSamples for the Status Process to
// drain on its own schedule.
type StatusRegister struct {
	mu      sync.Mutex
	samples []StatusSample
}

// NewStatusRegister returns an empty register.
func NewStatusRegister() *StatusRegister { return &StatusRegister{} }

// Append adds one sample.
func (r *StatusRegister) Append(s StatusSample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Drain atomically swaps out and returns everything accumulated since
// the last Drain.
func (r *StatusRegister) Drain() []StatusSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.samples
	r.samples = nil
	return out
}
