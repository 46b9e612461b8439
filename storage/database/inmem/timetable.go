package inmemdb

import (
	"github.com/smartsched/console/core/timetable"
)

type draftStore struct {
	db *draftTable
}

var _ timetable.Store = (*draftStore)(nil)

func NewDraftStore(db *DB) *draftStore {
	return &draftStore{db: db.draft}
}

func (s *draftStore) LoadDraft(ownerID int) (timetable.Config, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if cfg, ok := s.db.table[ownerID]; ok {
		return cfg, nil
	}
	return timetable.Config{}, timetable.ErrNoDraft
}

func (s *draftStore) SaveDraft(ownerID int, cfg timetable.Config) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	s.db.table[ownerID] = cfg
	return nil
}

func (s *draftStore) ClearDraft(ownerID int) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	delete(s.db.table, ownerID)
	return nil
}
