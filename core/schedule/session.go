package schedule

import (
	"strings"

	"github.com/smartsched/console/core/timetable"
)

// WorkshopSubject marks generator-inserted filler sessions; they render apart
// from regular theory entries.
const WorkshopSubject = "Workshop"

type (
	// Session is one placed timetable entry. Group and Duration are only set
	// for lab sessions; MovedFrom/Moved only after a teacher reset relocated
	// the entry.
	Session struct {
		Section   string `json:"section"`
		Day       string `json:"day"`
		Slot      string `json:"slot"`
		Subject   string `json:"subject"`
		Room      string `json:"room"`
		Teacher   string `json:"teacher"`
		Group     string `json:"group,omitempty"`
		Duration  int    `json:"duration,omitempty"`
		MovedFrom string `json:"moved_from,omitempty"`
		Moved     bool   `json:"moved,omitempty"`
	}

	// Unfulfilled counts lecture requirements the generator could not place,
	// keyed by section then subject.
	Unfulfilled map[string]map[string]int

	// Suggestions carries generator advice for unfulfilled requirements,
	// keyed like Unfulfilled.
	Suggestions map[string]map[string][]string

	Statistics struct {
		TotalSections         int            `json:"total_sections"`
		TotalClasses          int            `json:"total_classes"`
		TotalSlotsUsed        int            `json:"total_slots_used"`
		TotalSlotsAvailable   int            `json:"total_slots_available"`
		UtilizationPercentage float64        `json:"utilization_percentage"`
		TeacherUtilization    map[string]int `json:"teacher_utilization"`
		RoomUtilization       map[string]int `json:"room_utilization"`
		SubjectDistribution   map[string]int `json:"subject_distribution"`
	}

	// Result is a complete generation outcome as returned by the generator
	// service and persisted in snapshots.
	Result struct {
		Timetable          []Session   `json:"timetable"`
		Unfulfilled        Unfulfilled `json:"unfulfilled"`
		Suggestions        Suggestions `json:"suggestions,omitempty"`
		Statistics         Statistics  `json:"statistics"`
		ValidationWarnings []string    `json:"validation_warnings"`
	}
)

// Duration values below 1 mean a plain single-slot session.
func (s Session) SpanSlots() int {
	if s.Duration < 1 {
		return 1
	}
	return s.Duration
}

// sameLabPlacement reports whether two sessions are slices of the same
// multi-slot lab run.
func sameLabPlacement(a, b Session) bool {
	return a.Subject == b.Subject && a.Group == b.Group && a.Room == b.Room && a.Teacher == b.Teacher
}

func foldEq(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FilterByTeacher keeps the sessions taught by the named teacher. Matching
// ignores case and surrounding whitespace.
func FilterByTeacher(sessions []Session, teacher string) []Session {
	out := []Session{}
	for _, s := range sessions {
		if foldEq(s.Teacher, teacher) {
			out = append(out, s)
		}
	}
	return out
}

// FilterBySection keeps the sessions belonging to the named section.
func FilterBySection(sessions []Session, section string) []Session {
	out := []Session{}
	for _, s := range sessions {
		if foldEq(s.Section, section) {
			out = append(out, s)
		}
	}
	return out
}

// ComputeStatistics derives placement statistics from placed sessions the way
// the generation report does: lunch slots never count, availability is
// days x teaching slots per section appearing in the timetable.
func ComputeStatistics(sessions []Session, cfg timetable.Config) Statistics {
	stats := Statistics{
		TotalClasses:        len(cfg.Classes),
		TeacherUtilization:  map[string]int{},
		RoomUtilization:     map[string]int{},
		SubjectDistribution: map[string]int{},
	}

	sections := map[string]bool{}
	for _, s := range sessions {
		sections[s.Section] = true
		if s.Slot == timetable.LunchBreakSlot {
			continue
		}
		stats.TotalSlotsUsed++
		if s.Teacher != "" {
			stats.TeacherUtilization[s.Teacher]++
		}
		if s.Room != "" {
			stats.RoomUtilization[s.Room]++
		}
		if s.Subject != "" {
			stats.SubjectDistribution[s.Subject]++
		}
	}
	stats.TotalSections = len(sections)

	teaching := 0
	for _, slot := range cfg.Slots {
		if slot != timetable.LunchBreakSlot {
			teaching++
		}
	}
	stats.TotalSlotsAvailable = len(cfg.Days) * teaching * stats.TotalSections
	if stats.TotalSlotsAvailable > 0 {
		stats.UtilizationPercentage = float64(stats.TotalSlotsUsed) / float64(stats.TotalSlotsAvailable) * 100
	}
	return stats
}
