package inmemdb

import (
	"time"

	"github.com/smartsched/console/core/schedule"
)

type publishedRepository struct {
	db *publishedTable
}

var _ schedule.PublishedRepository = (*publishedRepository)(nil)

func NewPublishedRepository(db *DB) *publishedRepository {
	return &publishedRepository{db: db.published}
}

func (repo *publishedRepository) GetPublished() (schedule.Published, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.db.current == nil {
		return schedule.Published{}, schedule.ErrNotPublished
	}
	return *repo.db.current, nil
}

func (repo *publishedRepository) SavePublished(p schedule.Published) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.current = &p
	return nil
}

func (repo *publishedRepository) DeletePublished() error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.current = nil
	return nil
}

type rescheduleRepository struct {
	db *rescheduleTable
}

var _ schedule.RescheduleRepository = (*rescheduleRepository)(nil)

func NewRescheduleRepository(db *DB) *rescheduleRepository {
	return &rescheduleRepository{db: db.reschedule}
}

func (repo *rescheduleRepository) QueryAllRequests() ([]schedule.RescheduleRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]schedule.RescheduleRequest, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		reqs = append(reqs, *r)
	}
	return reqs, nil
}

func (repo *rescheduleRepository) GetRequestByID(id int64) (schedule.RescheduleRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return schedule.RescheduleRequest{}, schedule.ErrRequestNotFound
}

func (repo *rescheduleRepository) CreateRequest(r schedule.RescheduleRequest) (schedule.RescheduleRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *rescheduleRepository) DeleteRequest(id int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}

func (repo *rescheduleRepository) DeleteAllRequests() error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table = make(map[int64]*schedule.RescheduleRequest)
	return nil
}

type activityRepository struct {
	db *activityTable
}

var _ schedule.ActivityRepository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db.activity}
}

func (repo *activityRepository) CreateEntry(e schedule.ActivityEntry) (schedule.ActivityEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pkCount++
	e.ID = repo.db.pkCount
	repo.db.entries = append(repo.db.entries, e)
	return e, nil
}

func (repo *activityRepository) QueryEntriesSince(t time.Time) ([]schedule.ActivityEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]schedule.ActivityEntry, 0)
	for _, e := range repo.db.entries {
		if !e.CreatedAt.Before(t) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (repo *activityRepository) DeleteEntriesBefore(t time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	kept := repo.db.entries[:0]
	for _, e := range repo.db.entries {
		if !e.CreatedAt.Before(t) {
			kept = append(kept, e)
		}
	}
	repo.db.entries = kept
	return nil
}
