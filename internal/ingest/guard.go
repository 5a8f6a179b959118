package ingest

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrScanActive is returned when a scan is requested while another one
// is still running.
var ErrScanActive = errors.New("a scan is already running")

// Guard serializes scans and keeps the latest progress snapshot so
// status can be polled after the scan that produced it has finished.
type Guard struct {
	mu     sync.Mutex
	active bool
	last   Snapshot
}

func NewGuard() *Guard {
	return &Guard{}
}

// Begin claims the scan slot and assigns a run ID. It fails with
// ErrScanActive when another scan holds the slot.
func (g *Guard) Begin() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return "", ErrScanActive
	}

	runID := uuid.NewString()
	g.active = true
	g.last = Snapshot{RunID: runID}
	return runID, nil
}

// Finish releases the scan slot. The last snapshot stays readable.
func (g *Guard) Finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

// Update stores the latest progress snapshot.
func (g *Guard) Update(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = s
}

// Status reports the most recent snapshot and whether a scan is running.
func (g *Guard) Status() (Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.active
}
