package audit

import "time"

// ShouldEmitHeader decides whether the SAVE summary line is worth writing.
// Saves that land within threshold of the record's creation, or of the
// previous save, are editor auto-save bursts and only get their per-field
// lines.
func ShouldEmitHeader(created, lastOldUpdate, lastNewUpdate time.Time, threshold time.Duration) bool {
	sinceCreation := lastNewUpdate.Sub(created)
	sinceLastSave := lastNewUpdate.Sub(lastOldUpdate)
	return sinceCreation > threshold && sinceLastSave > threshold
}
