package schedule

import (
	"time"

	"github.com/smartsched/console/core/timetable"
)

// Reschedule request types.
const (
	RequestUnavailable  = "unavailable"
	RequestReslotTheory = "reslot_theory"
)

// Reschedule request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type (
	// TemporaryChange is an approved schedule alteration that expires at the
	// end of the day it was granted for. The published timetable is rebuilt
	// from its base snapshot whenever the active set changes.
	TemporaryChange struct {
		Type      string    `json:"type"`
		RequestID int64     `json:"requestId"`
		Teacher   string    `json:"teacher"`
		Day       string    `json:"day"`
		Slot      string    `json:"slot,omitempty"`
		FromSlot  string    `json:"fromSlot,omitempty"`
		ToSlot    string    `json:"toSlot,omitempty"`
		AppliedAt time.Time `json:"appliedAt"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	// Published is the single live timetable the whole school sees. Base
	// holds the result as originally published so temporary changes can be
	// reverted when they expire.
	Published struct {
		Config           timetable.Config  `json:"inputData"`
		Result           Result            `json:"timetableData"`
		Base             Result            `json:"baseTimetableData"`
		TemporaryChanges []TemporaryChange `json:"temporary_changes"`
		PublishedAt      time.Time         `json:"publishedAt"`
		PublishedBy      string            `json:"publishedBy"`
	}

	// RescheduleRequest is a teacher's ask to be freed from, or move, one
	// assignment. Pending requests live until an admin resolves them.
	RescheduleRequest struct {
		ID            int64      `json:"id"`
		Teacher       string     `json:"teacher"`
		Day           string     `json:"day"`
		Slot          string     `json:"slot"`
		RequestType   string     `json:"requestType"`
		PreferredSlot string     `json:"preferredSlot,omitempty"`
		Section       string     `json:"section"`
		Subject       string     `json:"subject"`
		Group         string     `json:"group,omitempty"`
		Reason        string     `json:"reason"`
		Status        string     `json:"status"`
		AdminNote     string     `json:"adminNote,omitempty"`
		ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
		CreatedAt     time.Time  `json:"createdAt"`
		CreatedBy     string     `json:"createdBy"`
		ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
		ResolvedBy    string     `json:"resolvedBy,omitempty"`
	}

	// ActivityEntry is one line of the admin activity feed.
	ActivityEntry struct {
		ID        int64                  `json:"id"`
		Type      string                 `json:"type"`
		Message   string                 `json:"message"`
		CreatedAt time.Time              `json:"createdAt"`
		Data      map[string]interface{} `json:"data"`
	}

	PublishedRepository interface {
		// GetPublished returns ErrNotPublished when nothing is live.
		GetPublished() (Published, error)
		SavePublished(p Published) error
		DeletePublished() error
	}

	RescheduleRepository interface {
		QueryAllRequests() ([]RescheduleRequest, error)
		GetRequestByID(id int64) (RescheduleRequest, error)
		CreateRequest(r RescheduleRequest) (RescheduleRequest, error)
		DeleteRequest(id int64) error
		DeleteAllRequests() error
	}

	ActivityRepository interface {
		CreateEntry(e ActivityEntry) (ActivityEntry, error)
		QueryEntriesSince(t time.Time) ([]ActivityEntry, error)
		DeleteEntriesBefore(t time.Time) error
	}
)

// HasExpiredChanges reports whether any temporary change lapsed by now.
func (p Published) HasExpiredChanges(now time.Time) bool {
	for _, c := range p.TemporaryChanges {
		if !c.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// ActiveChanges returns the temporary changes still in force at now, oldest
// application first.
func (p Published) ActiveChanges(now time.Time) []TemporaryChange {
	active := []TemporaryChange{}
	for _, c := range p.TemporaryChanges {
		if c.ExpiresAt.After(now) {
			active = append(active, c)
		}
	}
	for i := 1; i < len(active); i++ {
		for j := i; j > 0 && active[j].AppliedAt.Before(active[j-1].AppliedAt); j-- {
			active[j], active[j-1] = active[j-1], active[j]
		}
	}
	return active
}

// Rebuild reapplies the active temporary changes on top of the base result.
// Changes that no longer apply cleanly are skipped.
func (p *Published) Rebuild(now time.Time) {
	rows := append([]Session(nil), p.Base.Timetable...)
	p.TemporaryChanges = p.ActiveChanges(now)
	for _, c := range p.TemporaryChanges {
		if c.Type == RequestReslotTheory {
			updated, err := ApplyTheoryReslot(rows, c.Teacher, c.Day, c.FromSlot, c.ToSlot, p.Config.Slots)
			if err != nil {
				continue
			}
			rows = updated
		} else {
			rows = ResetTeacher(p.Config, rows, c.Teacher, c.Day, c.Slot)
		}
	}
	p.Result.Timetable = rows
	// the generator's statistics describe the base placement; once the console
	// rewrites rows they are recomputed locally
	p.Result.Statistics = ComputeStatistics(rows, p.Config)
}
