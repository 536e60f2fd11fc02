package board

// Adaptive throttle policy for preview writes.
//
// During an active manipulation gesture a session emits frequent partial
// updates. The minimum interval between those previews grows with the number
// of connected participants and with the size of the active selection, so
// that a busy document trades update smoothness for network load. The final
// commit write at gesture end is never throttled.

const (
	throttleSmallRoomMs  = 50  // 5 users or fewer
	throttleMediumRoomMs = 100 // 6-10 users
	throttleLargeRoomMs  = 200 // 11 or more users

	throttlePerObjectMs = 2
	throttleCeilingMs   = 500
)

// ThrottleMs returns the minimum interval, in milliseconds, between preview
// writes for the given participant count and selection size.
func ThrottleMs(userCount, selectionSize int) int {
	base := throttleSmallRoomMs
	switch {
	case userCount > 10:
		base = throttleLargeRoomMs
	case userCount > 5:
		base = throttleMediumRoomMs
	}

	ms := base
	// single-object gestures stay at the tier base; only multi-selections
	// pay the per-object surcharge
	if selectionSize > 1 {
		ms += throttlePerObjectMs * selectionSize
	}
	if ms > throttleCeilingMs {
		ms = throttleCeilingMs
	}
	return ms
}
