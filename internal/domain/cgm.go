package domain

import (
	"fmt"
	"time"
)

// Mmoll is a blood glucose value in mmol/L.
type Mmoll float32

// CGMEntry is a single continuous glucose monitor reading.
type CGMEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Mmoll     Mmoll     `json:"mmol"`
}

// NewCGMEntry creates a reading at the given time.
func NewCGMEntry(timestamp time.Time, mmoll Mmoll) CGMEntry {
	return CGMEntry{Timestamp: timestamp, Mmoll: mmoll}
}

func (e CGMEntry) String() string {
	return fmt.Sprintf("%v@%s", e.Mmoll, e.Timestamp.Local().Format(time.RFC3339))
}
