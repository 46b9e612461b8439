package inmemdb

import (
	"sync"

	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
	"github.com/smartsched/console/core/user"
)

// DB is a process-local store backing the repositories. It is used by tests
// and by the API server in dev mode when no database is configured.
type (
	DB struct {
		user         *userTable
		registration *registrationTable
		draft        *draftTable
		published    *publishedTable
		reschedule   *rescheduleTable
		activity     *activityTable
	}

	userTable struct {
		table map[int]*user.User
		mutex sync.RWMutex
	}

	registrationTable struct {
		table map[int64]*user.Registration
		mutex sync.RWMutex
	}

	draftTable struct {
		table map[int]timetable.Config
		mutex sync.RWMutex
	}

	publishedTable struct {
		current *schedule.Published
		mutex   sync.RWMutex
	}

	rescheduleTable struct {
		table map[int64]*schedule.RescheduleRequest
		mutex sync.RWMutex
	}

	activityTable struct {
		entries []schedule.ActivityEntry
		pkCount int64
		mutex   sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[int]*user.User)},
		registration: &registrationTable{table: make(map[int64]*user.Registration)},
		draft:        &draftTable{table: make(map[int]timetable.Config)},
		published:    &publishedTable{},
		reschedule:   &rescheduleTable{table: make(map[int64]*schedule.RescheduleRequest)},
		activity:     &activityTable{},
	}
	return db, nil
}
