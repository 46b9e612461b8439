package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/smartsched/console/core/timetable"
)

// draftStore persists each admin's in-progress configuration as a JSONB blob.
type draftStore struct {
	db *sqlx.DB
}

var _ timetable.Store = (*draftStore)(nil)

func NewDraftStore(db *sqlx.DB) *draftStore {
	return &draftStore{db: db}
}

func (s draftStore) LoadDraft(ownerID int) (timetable.Config, error) {
	var blob []byte
	if err := s.db.Get(&blob, `SELECT config FROM draft_configs WHERE owner_id = $1`, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return timetable.Config{}, timetable.ErrNoDraft
		}
		return timetable.Config{}, errors.Wrap(err, "loading draft")
	}
	var cfg timetable.Config
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return timetable.Config{}, errors.Wrap(err, "decoding draft")
	}
	return cfg, nil
}

func (s draftStore) SaveDraft(ownerID int, cfg timetable.Config) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	query := `
		INSERT INTO draft_configs (owner_id, config, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`
	if _, err = s.db.Exec(query, ownerID, blob, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "saving draft")
	}
	return nil
}

func (s draftStore) ClearDraft(ownerID int) error {
	if _, err := s.db.Exec(`DELETE FROM draft_configs WHERE owner_id = $1`, ownerID); err != nil {
		return errors.Wrap(err, "clearing draft")
	}
	return nil
}
