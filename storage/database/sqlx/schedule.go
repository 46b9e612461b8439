package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
)

type publishedRow struct {
	Config           []byte    `db:"config"`
	Result           []byte    `db:"result"`
	BaseResult       []byte    `db:"base_result"`
	TemporaryChanges []byte    `db:"temporary_changes"`
	PublishedAt      time.Time `db:"published_at"`
	PublishedBy      string    `db:"published_by"`
}

func rowFromPublished(p schedule.Published) (publishedRow, error) {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return publishedRow{}, errors.Wrap(err, "encoding config")
	}
	res, err := json.Marshal(p.Result)
	if err != nil {
		return publishedRow{}, errors.Wrap(err, "encoding result")
	}
	base, err := json.Marshal(p.Base)
	if err != nil {
		return publishedRow{}, errors.Wrap(err, "encoding base result")
	}
	changes, err := json.Marshal(p.TemporaryChanges)
	if err != nil {
		return publishedRow{}, errors.Wrap(err, "encoding temporary changes")
	}
	return publishedRow{
		Config:           cfg,
		Result:           res,
		BaseResult:       base,
		TemporaryChanges: changes,
		PublishedAt:      p.PublishedAt.UTC(),
		PublishedBy:      p.PublishedBy,
	}, nil
}

func (r publishedRow) toPublished() (schedule.Published, error) {
	p := schedule.Published{
		PublishedAt: r.PublishedAt,
		PublishedBy: r.PublishedBy,
	}
	var cfg timetable.Config
	if err := json.Unmarshal(r.Config, &cfg); err != nil {
		return schedule.Published{}, errors.Wrap(err, "decoding config")
	}
	p.Config = cfg
	if err := json.Unmarshal(r.Result, &p.Result); err != nil {
		return schedule.Published{}, errors.Wrap(err, "decoding result")
	}
	if err := json.Unmarshal(r.BaseResult, &p.Base); err != nil {
		return schedule.Published{}, errors.Wrap(err, "decoding base result")
	}
	if err := json.Unmarshal(r.TemporaryChanges, &p.TemporaryChanges); err != nil {
		return schedule.Published{}, errors.Wrap(err, "decoding temporary changes")
	}
	return p, nil
}

type publishedRepository struct {
	db *sqlx.DB
}

var _ schedule.PublishedRepository = (*publishedRepository)(nil)

func NewPublishedRepository(db *sqlx.DB) *publishedRepository {
	return &publishedRepository{db: db}
}

func (repo publishedRepository) GetPublished() (schedule.Published, error) {
	var row publishedRow
	query := `SELECT config, result, base_result, temporary_changes, published_at, published_by FROM published_timetable WHERE id = 1`
	if err := repo.db.Get(&row, query); err != nil {
		if err == sql.ErrNoRows {
			return schedule.Published{}, schedule.ErrNotPublished
		}
		return schedule.Published{}, errors.Wrap(err, "getting published timetable")
	}
	return row.toPublished()
}

func (repo publishedRepository) SavePublished(p schedule.Published) error {
	row, err := rowFromPublished(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO published_timetable (id, config, result, base_result, temporary_changes, published_at, published_by)
		VALUES (1, :config, :result, :base_result, :temporary_changes, :published_at, :published_by)
		ON CONFLICT (id) DO UPDATE
		SET config = EXCLUDED.config, result = EXCLUDED.result, base_result = EXCLUDED.base_result,
		    temporary_changes = EXCLUDED.temporary_changes,
		    published_at = EXCLUDED.published_at, published_by = EXCLUDED.published_by`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return errors.Wrap(err, "saving published timetable")
	}
	return nil
}

func (repo publishedRepository) DeletePublished() error {
	if _, err := repo.db.Exec(`DELETE FROM published_timetable WHERE id = 1`); err != nil {
		return errors.Wrap(err, "deleting published timetable")
	}
	return nil
}

type rescheduleRow struct {
	ID            int64     `db:"id"`
	Teacher       string    `db:"teacher"`
	Day           string    `db:"day"`
	Slot          string    `db:"slot"`
	RequestType   string    `db:"request_type"`
	PreferredSlot string    `db:"preferred_slot"`
	Section       string    `db:"section"`
	Subject       string    `db:"subject"`
	Group         string    `db:"grp"`
	Reason        string    `db:"reason"`
	Status        string    `db:"status"`
	AdminNote     string    `db:"admin_note"`
	ExpiresAt     null.Time `db:"expires_at"`
	CreatedAt     time.Time `db:"created_at"`
	CreatedBy     string    `db:"created_by"`
	ResolvedAt    null.Time `db:"resolved_at"`
	ResolvedBy    string    `db:"resolved_by"`
}

func rowFromRequest(r schedule.RescheduleRequest) rescheduleRow {
	row := rescheduleRow{
		ID:            r.ID,
		Teacher:       r.Teacher,
		Day:           r.Day,
		Slot:          r.Slot,
		RequestType:   r.RequestType,
		PreferredSlot: r.PreferredSlot,
		Section:       r.Section,
		Subject:       r.Subject,
		Group:         r.Group,
		Reason:        r.Reason,
		Status:        r.Status,
		AdminNote:     r.AdminNote,
		CreatedAt:     r.CreatedAt.UTC(),
		CreatedBy:     r.CreatedBy,
		ResolvedBy:    r.ResolvedBy,
	}
	if r.ExpiresAt != nil {
		row.ExpiresAt = null.TimeFrom(r.ExpiresAt.UTC())
	}
	if r.ResolvedAt != nil {
		row.ResolvedAt = null.TimeFrom(r.ResolvedAt.UTC())
	}
	return row
}

func (row rescheduleRow) toRequest() schedule.RescheduleRequest {
	r := schedule.RescheduleRequest{
		ID:            row.ID,
		Teacher:       row.Teacher,
		Day:           row.Day,
		Slot:          row.Slot,
		RequestType:   row.RequestType,
		PreferredSlot: row.PreferredSlot,
		Section:       row.Section,
		Subject:       row.Subject,
		Group:         row.Group,
		Reason:        row.Reason,
		Status:        row.Status,
		AdminNote:     row.AdminNote,
		CreatedAt:     row.CreatedAt,
		CreatedBy:     row.CreatedBy,
		ResolvedBy:    row.ResolvedBy,
	}
	r.ExpiresAt = row.ExpiresAt.Ptr()
	r.ResolvedAt = row.ResolvedAt.Ptr()
	return r
}

type rescheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.RescheduleRepository = (*rescheduleRepository)(nil)

func NewRescheduleRepository(db *sqlx.DB) *rescheduleRepository {
	return &rescheduleRepository{db: db}
}

func (repo rescheduleRepository) QueryAllRequests() ([]schedule.RescheduleRequest, error) {
	var rows []rescheduleRow
	if err := repo.db.Select(&rows, `SELECT * FROM reschedule_requests ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying reschedule requests")
	}
	reqs := make([]schedule.RescheduleRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

func (repo rescheduleRepository) GetRequestByID(id int64) (schedule.RescheduleRequest, error) {
	var row rescheduleRow
	if err := repo.db.Get(&row, `SELECT * FROM reschedule_requests WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return schedule.RescheduleRequest{}, schedule.ErrRequestNotFound
		}
		return schedule.RescheduleRequest{}, errors.Wrap(err, "getting reschedule request")
	}
	return row.toRequest(), nil
}

func (repo rescheduleRepository) CreateRequest(r schedule.RescheduleRequest) (schedule.RescheduleRequest, error) {
	query := `
		INSERT INTO reschedule_requests (id, teacher, day, slot, request_type, preferred_slot, section, subject, grp,
		                                 reason, status, admin_note, expires_at, created_at, created_by, resolved_at, resolved_by)
		VALUES (:id, :teacher, :day, :slot, :request_type, :preferred_slot, :section, :subject, :grp,
		        :reason, :status, :admin_note, :expires_at, :created_at, :created_by, :resolved_at, :resolved_by)`
	if _, err := repo.db.NamedExec(query, rowFromRequest(r)); err != nil {
		return schedule.RescheduleRequest{}, errors.Wrap(err, "creating reschedule request")
	}
	return r, nil
}

func (repo rescheduleRepository) DeleteRequest(id int64) error {
	if _, err := repo.db.Exec(`DELETE FROM reschedule_requests WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting reschedule request")
	}
	return nil
}

func (repo rescheduleRepository) DeleteAllRequests() error {
	if _, err := repo.db.Exec(`DELETE FROM reschedule_requests`); err != nil {
		return errors.Wrap(err, "deleting reschedule requests")
	}
	return nil
}

type activityRow struct {
	ID        int64     `db:"id"`
	Type      string    `db:"type"`
	Message   string    `db:"message"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ schedule.ActivityRepository = (*activityRepository)(nil)

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo activityRepository) CreateEntry(e schedule.ActivityEntry) (schedule.ActivityEntry, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return schedule.ActivityEntry{}, errors.Wrap(err, "encoding activity data")
	}
	row := activityRow{ID: e.ID, Type: e.Type, Message: e.Message, Data: data, CreatedAt: e.CreatedAt.UTC()}
	query := `INSERT INTO activity_log (id, type, message, data, created_at) VALUES (:id, :type, :message, :data, :created_at)`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return schedule.ActivityEntry{}, errors.Wrap(err, "creating activity entry")
	}
	return e, nil
}

func (repo activityRepository) QueryEntriesSince(t time.Time) ([]schedule.ActivityEntry, error) {
	var rows []activityRow
	if err := repo.db.Select(&rows, `SELECT * FROM activity_log WHERE created_at >= $1 ORDER BY created_at`, t.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying activity log")
	}
	entries := make([]schedule.ActivityEntry, 0, len(rows))
	for _, r := range rows {
		e := schedule.ActivityEntry{ID: r.ID, Type: r.Type, Message: r.Message, CreatedAt: r.CreatedAt}
		if err := json.Unmarshal(r.Data, &e.Data); err != nil {
			return nil, errors.Wrap(err, "decoding activity data")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo activityRepository) DeleteEntriesBefore(t time.Time) error {
	if _, err := repo.db.Exec(`DELETE FROM activity_log WHERE created_at < $1`, t.UTC()); err != nil {
		return errors.Wrap(err, "pruning activity log")
	}
	return nil
}
