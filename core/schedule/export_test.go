package schedule

import "time"

// Hooks for the external schedule_test package, which cannot reach
// unexported identifiers directly.

func SetClock(svc *Service, at time.Time) {
	svc.clock = func() time.Time { return at }
}

var FindAssignment = findAssignment
