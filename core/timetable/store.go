package timetable

import "errors"

// ErrNoDraft is returned by Store.LoadDraft when no draft configuration has
// been saved for the owner.
var ErrNoDraft = errors.New("draft config not found")

// Store persists draft configurations between editing sessions, keyed by the
// account that owns the draft.
type Store interface {
	LoadDraft(ownerID int) (Config, error)
	SaveDraft(ownerID int, cfg Config) error
	ClearDraft(ownerID int) error
}
