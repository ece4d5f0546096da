package clock

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// HLC implements a simple hybrid logical clock. Catalog rows are stamped with
// it so runs recorded within the same nanosecond still sort in record order.
type HLC struct {
	mu           sync.Mutex
	clk          Clock
	lastPhysical int64
	logical      uint32
}

// New returns an HLC reading physical time from clk (RealClock when nil).
func New(clk Clock) *HLC {
	if clk == nil {
		clk = RealClock{}
	}
	return &HLC{clk: clk}
}

// Next returns the next HLC timestamp string (lexicographically sortable).
func (h *HLC) Next() string {
	now := h.clk.Now().UnixNano()
	h.mu.Lock()
	if now > h.lastPhysical {
		h.lastPhysical = now
		h.logical = 0
	} else {
		h.logical++
	}
	physical := h.lastPhysical
	logical := h.logical
	h.mu.Unlock()
	return format(physical, logical)
}

// Update advances the clock past ts, typically the newest stamp already
// persisted, so stamps stay monotonic across processes.
func (h *HLC) Update(ts string) bool {
	physical, logical, ok := Parse(ts)
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case physical > h.lastPhysical:
		h.lastPhysical = physical
		h.logical = logical
		return true
	case physical == h.lastPhysical && logical > h.logical:
		h.logical = logical
		return true
	}
	return false
}

// Parse splits an HLC stamp into its physical and logical parts.
func Parse(ts string) (int64, uint32, bool) {
	parts := strings.SplitN(ts, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	physical, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	logical64, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return physical, uint32(logical64), true
}

func format(physical int64, logical uint32) string {
	return fmt.Sprintf("%019d-%010d", physical, logical)
}
