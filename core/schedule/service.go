package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/smartsched/console/core/timetable"
)

var (
	// errors
	ErrNotPublished     = errors.New("no published timetable found")
	ErrAlreadyPublished = errors.New("a timetable is already published. Delete it before publishing a new one")
	ErrEmptyTimetable   = errors.New("timetable result has no sessions")
	ErrRequestNotFound  = errors.New("reschedule request not found")
	ErrRequestResolved  = errors.New("request already resolved")
	ErrDuplicateRequest = errors.New("a pending request already exists for this day/slot")
	ErrSlotNotAvailable = errors.New("selected preferred slot is not available")
)

type (
	// InputReport is the generator's verdict on a configuration: hard errors
	// block generation, warnings ride along with the result.
	InputReport struct {
		Valid    bool     `json:"valid"`
		Errors   []string `json:"errors"`
		Warnings []string `json:"warnings"`
	}

	// Generator produces timetables from a validated configuration. The
	// production implementation calls the scheduling engine over HTTP.
	Generator interface {
		Generate(ctx context.Context, cfg timetable.Config) (Result, error)
		ValidateInput(ctx context.Context, cfg timetable.Config) (InputReport, error)
	}

	// Feed is the admin activity overview: today's events plus what awaits a
	// decision.
	Feed struct {
		Date               string              `json:"date"`
		Events             []ActivityEntry     `json:"events"`
		PendingReschedules []RescheduleRequest `json:"pendingReschedules"`
	}

	Service struct {
		published PublishedRepository
		resched   RescheduleRepository
		activity  ActivityRepository
		generator Generator
		retention time.Duration
		clock     func() time.Time
	}
)

func NewService(
	published PublishedRepository,
	resched RescheduleRepository,
	activity ActivityRepository,
	generator Generator,
	retention time.Duration,
) *Service {
	return &Service{
		published: published,
		resched:   resched,
		activity:  activity,
		generator: generator,
		retention: retention,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Generate(ctx context.Context, cfg timetable.Config) (Result, error) {
	return svc.generator.Generate(ctx, cfg)
}

func (svc *Service) ValidateInput(ctx context.Context, cfg timetable.Config) (InputReport, error) {
	return svc.generator.ValidateInput(ctx, cfg)
}

// Publish makes a generated result the live timetable. Only one timetable
// may be live at a time; the previous one must be deleted first.
func (svc *Service) Publish(cfg timetable.Config, result Result, publishedBy string) (Published, error) {
	if len(result.Timetable) == 0 {
		return Published{}, ErrEmptyTimetable
	}
	if _, err := svc.published.GetPublished(); err == nil {
		return Published{}, ErrAlreadyPublished
	} else if !errors.Is(err, ErrNotPublished) {
		return Published{}, err
	}

	pub := Published{
		Config:           cfg,
		Result:           result,
		Base:             result,
		TemporaryChanges: []TemporaryChange{},
		PublishedAt:      svc.clock(),
		PublishedBy:      publishedBy,
	}
	if err := svc.published.SavePublished(pub); err != nil {
		return Published{}, err
	}
	return pub, nil
}

// GetPublished returns the live timetable, first expiring lapsed temporary
// changes and rebuilding from the base snapshot when any lapsed.
func (svc *Service) GetPublished() (Published, error) {
	pub, err := svc.published.GetPublished()
	if err != nil {
		return Published{}, err
	}
	now := svc.clock()
	if pub.HasExpiredChanges(now) {
		pub.Rebuild(now)
		pub.PublishedAt = now
		if err := svc.published.SavePublished(pub); err != nil {
			return Published{}, err
		}
	}
	return pub, nil
}

// DeletePublished retires the live timetable and drops every reschedule
// request along with it.
func (svc *Service) DeletePublished() error {
	if err := svc.published.DeletePublished(); err != nil {
		return err
	}
	return svc.resched.DeleteAllRequests()
}

// ResetTeacherAssignment runs a one-off teacher reset over the provided rows.
// It does not touch the published timetable; callers decide what to do with
// the outcome.
func (svc *Service) ResetTeacherAssignment(cfg timetable.Config, sessions []Session, teacher, day, slot string) []Session {
	return ResetTeacher(cfg, sessions, teacher, day, slot)
}

// RequestReschedule files a teacher's reschedule request against the live
// timetable.
func (svc *Service) RequestReschedule(teacher, day, slot, requestType, preferredSlot, reason, createdBy string) (RescheduleRequest, error) {
	pub, err := svc.GetPublished()
	if err != nil {
		return RescheduleRequest{}, err
	}

	assignment := findAssignment(pub.Result.Timetable, teacher, day, slot)
	if assignment == nil {
		return RescheduleRequest{}, ErrNoAssignment
	}

	existing, err := svc.resched.QueryAllRequests()
	if err != nil {
		return RescheduleRequest{}, err
	}
	for _, r := range existing {
		if r.Status == StatusPending && r.RequestType == requestType &&
			foldEq(r.Teacher, teacher) && r.Day == day && r.Slot == slot {
			return RescheduleRequest{}, ErrDuplicateRequest
		}
	}

	if requestType == RequestReslotTheory {
		if assignment.Group != "" {
			return RescheduleRequest{}, ErrLabNotMovable
		}
		available, err := AvailableTheorySlots(pub.Result.Timetable, teacher, day, slot, pub.Config.Slots)
		if err != nil {
			return RescheduleRequest{}, err
		}
		if !containsString(available, preferredSlot) {
			return RescheduleRequest{}, ErrSlotNotAvailable
		}
	} else {
		preferredSlot = ""
	}

	now := svc.clock()
	req := RescheduleRequest{
		ID:            now.UnixNano() / int64(time.Millisecond),
		Teacher:       teacher,
		Day:           day,
		Slot:          slot,
		RequestType:   requestType,
		PreferredSlot: preferredSlot,
		Section:       assignment.Section,
		Subject:       assignment.Subject,
		Group:         assignment.Group,
		Reason:        reason,
		Status:        StatusPending,
		CreatedAt:     now,
		CreatedBy:     createdBy,
	}
	req, err = svc.resched.CreateRequest(req)
	if err != nil {
		return RescheduleRequest{}, err
	}

	svc.LogActivity("reschedule_request_created",
		teacher+" requested reschedule on "+day+" ("+slot+")",
		map[string]interface{}{"teacher": teacher, "day": day, "slot": slot})
	return req, nil
}

// PendingRequests lists pending reschedule requests, newest first.
func (svc *Service) PendingRequests() ([]RescheduleRequest, error) {
	all, err := svc.resched.QueryAllRequests()
	if err != nil {
		return nil, err
	}
	pending := []RescheduleRequest{}
	for _, r := range all {
		if r.Status == StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	return pending, nil
}

// ApproveReschedule grants a pending request as a temporary change lasting
// until the next midnight UTC, updates the live timetable accordingly and
// retires the request.
func (svc *Service) ApproveReschedule(id int64, approvedBy string) (RescheduleRequest, Published, error) {
	pub, err := svc.GetPublished()
	if err != nil {
		return RescheduleRequest{}, Published{}, err
	}
	req, err := svc.resched.GetRequestByID(id)
	if err != nil {
		return RescheduleRequest{}, Published{}, err
	}
	if req.Status != StatusPending {
		return RescheduleRequest{}, Published{}, ErrRequestResolved
	}

	now := svc.clock()
	expiresAt := nextMidnight(now)
	change := TemporaryChange{
		Type:      req.RequestType,
		RequestID: req.ID,
		Teacher:   req.Teacher,
		Day:       req.Day,
		AppliedAt: now,
		ExpiresAt: expiresAt,
	}
	if req.RequestType == RequestReslotTheory {
		change.FromSlot = req.Slot
		change.ToSlot = req.PreferredSlot
		updated, err := ApplyTheoryReslot(pub.Result.Timetable, req.Teacher, req.Day, req.Slot, req.PreferredSlot, pub.Config.Slots)
		if err != nil {
			return RescheduleRequest{}, Published{}, err
		}
		pub.Result.Timetable = updated
		pub.Result.Statistics = ComputeStatistics(updated, pub.Config)
		pub.TemporaryChanges = append(pub.TemporaryChanges, change)
	} else {
		change.Slot = req.Slot
		pub.TemporaryChanges = append(pub.TemporaryChanges, change)
		pub.Rebuild(now)
	}
	pub.PublishedAt = now
	if err := svc.published.SavePublished(pub); err != nil {
		return RescheduleRequest{}, Published{}, err
	}

	req.Status = StatusApproved
	req.ExpiresAt = &expiresAt
	req.ResolvedAt = &now
	req.ResolvedBy = approvedBy
	if err := svc.resched.DeleteRequest(id); err != nil {
		return RescheduleRequest{}, Published{}, err
	}

	svc.LogActivity("reschedule_request_approved",
		"Reschedule approved for "+req.Teacher+" on "+req.Day+" ("+req.Slot+")",
		map[string]interface{}{"teacher": req.Teacher, "day": req.Day, "slot": req.Slot, "approvedBy": approvedBy})
	return req, pub, nil
}

// RejectReschedule declines a pending request with an admin note.
func (svc *Service) RejectReschedule(id int64, adminNote, rejectedBy string) (RescheduleRequest, error) {
	req, err := svc.resched.GetRequestByID(id)
	if err != nil {
		return RescheduleRequest{}, err
	}
	if req.Status != StatusPending {
		return RescheduleRequest{}, ErrRequestResolved
	}
	if adminNote == "" {
		adminNote = "Rejected by admin"
	}

	now := svc.clock()
	req.Status = StatusRejected
	req.AdminNote = adminNote
	req.ResolvedAt = &now
	req.ResolvedBy = rejectedBy
	if err := svc.resched.DeleteRequest(id); err != nil {
		return RescheduleRequest{}, err
	}

	svc.LogActivity("reschedule_request_rejected",
		"Reschedule rejected for "+req.Teacher+" on "+req.Day+" ("+req.Slot+")",
		map[string]interface{}{"teacher": req.Teacher, "day": req.Day, "slot": req.Slot, "rejectedBy": rejectedBy, "reason": adminNote})
	return req, nil
}

// LogActivity appends an activity entry and prunes entries beyond the
// retention window. Logging failures are swallowed; the feed is best-effort.
func (svc *Service) LogActivity(eventType, message string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	now := svc.clock()
	_, _ = svc.activity.CreateEntry(ActivityEntry{
		ID:        now.UnixNano() / int64(time.Millisecond),
		Type:      eventType,
		Message:   message,
		CreatedAt: now,
		Data:      data,
	})
	_ = svc.activity.DeleteEntriesBefore(now.Add(-svc.retention))
}

// ActivityFeed returns today's events, newest first, plus the pending
// reschedule requests.
func (svc *Service) ActivityFeed() (Feed, error) {
	now := svc.clock()
	_ = svc.activity.DeleteEntriesBefore(now.Add(-svc.retention))

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	events, err := svc.activity.QueryEntriesSince(startOfDay)
	if err != nil {
		return Feed{}, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })

	pending, err := svc.PendingRequests()
	if err != nil {
		return Feed{}, err
	}
	return Feed{
		Date:               startOfDay.Format("2006-01-02"),
		Events:             events,
		PendingReschedules: pending,
	}, nil
}

func nextMidnight(now time.Time) time.Time {
	next := now.Add(24 * time.Hour)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
