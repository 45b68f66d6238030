// Package rate implements the sliding-window byte-rate estimator a
// peer controller uses for its upRate/downRate.
//
// It is built on rcrowley/go-metrics' EWMA, the same library
// shammishailaj-rain uses for its torrent-level downloadSpeed and
// uploadSpeed counters (session/torrent.go: "downloadSpeed
// metrics.EWMA", ".Tick()" on every speed-counter tick). An EWMA1 is
// a one-minute decaying average that is *designed* to be ticked at a
// fixed interval — exactly the engine's 5-second timer.
package rate

import (
	"sync"

	"github.com/rcrowley/go-metrics"
)

// Estimator tracks bytes observed over time and answers two
// questions: the current smoothed rate (for the choke manager's rate
// register) and the raw byte count since the last extraction (for the
// status register).
type Estimator struct {
	mu          sync.Mutex
	ewma        metrics.EWMA
	windowBytes int64
	totalBytes  int64
}

// New returns a zeroed Estimator.
func New() *Estimator {
	return &Estimator{ewma: metrics.NewEWMA1()}
}

// Update adds n bytes to both the rate window and the count-since-
// last-extract counter.
func (e *Estimator) Update(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windowBytes += int64(n)
	e.totalBytes += int64(n)
}

// ExtractRate folds the bytes accumulated since the last call into
// the EWMA, advances it by one tick, and returns the resulting
// smoothed bytes-per-second rate. It is meant to be called once per
// timer tick.
func (e *Estimator) ExtractRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ewma.Update(e.windowBytes)
	e.windowBytes = 0
	e.ewma.Tick()
	return e.ewma.Rate()
}

// ExtractCount returns the raw byte count observed since the last
// call to ExtractCount, then resets it to zero.
func (e *Estimator) ExtractCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.totalBytes
	e.totalBytes = 0
	return c
}
