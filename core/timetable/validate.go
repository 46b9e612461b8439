package timetable

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type (
	// Violation is one validation finding. Class-level findings carry a
	// Fields map instead of a flat message; exactly one of the two is set.
	Violation struct {
		Message string
		Fields  map[string]string
	}

	// Violations is keyed by stable identifiers (`classes`, `class_<i>`,
	// `teacher_<subject>`, `lecture_req_<subject>`, ...) so a caller can
	// attach each finding to the form control it belongs to.
	Violations map[string]Violation
)

// MarshalJSON renders a flat violation as its bare message and a class-level
// violation as a field->message object, matching what clients key off.
func (v Violation) MarshalJSON() ([]byte, error) {
	if v.Fields != nil {
		return json.Marshal(v.Fields)
	}
	return json.Marshal(v.Message)
}

func (v *Violation) UnmarshalJSON(b []byte) error {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		v.Message = msg
		v.Fields = nil
		return nil
	}
	v.Message = ""
	return json.Unmarshal(b, &v.Fields)
}

// Keys returns the violation keys in lexical order.
func (vs Violations) Keys() []string {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (vs Violations) add(key, message string) {
	vs[key] = Violation{Message: message}
}

// Validate checks a configuration for completeness and feasibility before it
// may be submitted for generation. It returns ok=false with every violation
// found; validation never stops at the first problem.
func Validate(cfg Config) (bool, Violations) {
	violations := Violations{}

	if len(cfg.Classes) == 0 {
		violations.add("classes", "At least one class is required")
	} else {
		for i, cls := range cfg.Classes {
			if fields := validateClass(cls); len(fields) > 0 {
				violations[fmt.Sprintf("class_%d", i)] = Violation{Fields: fields}
			}
		}
	}

	if countNonBlank(cfg.Rooms) == 0 {
		violations.add("rooms", "At least one theory room is required")
	}

	labSubjects := cfg.LabSubjects()
	if len(labSubjects) > 0 && countNonBlank(cfg.Labs) == 0 {
		violations.add("labs", "Lab rooms are required when lab subjects exist")
	}

	for _, subject := range cfg.TheorySubjects() {
		if countNonBlank(cfg.Teachers[subject]) == 0 {
			violations.add("teacher_"+subject, fmt.Sprintf("At least one teacher is required for %s", subject))
		}
	}
	for _, subject := range labSubjects {
		if countNonBlank(cfg.LabTeachers[subject]) == 0 {
			violations.add("lab_teacher_"+subject, fmt.Sprintf("At least one teacher is required for lab subject %s", subject))
		}
		if len(cfg.LabRooms[subject]) == 0 {
			violations.add("lab_room_"+subject, fmt.Sprintf("At least one lab room must be assigned to %s", subject))
		}
	}

	// weekly requirements apply to theory subjects only; lab load is fixed
	// by the session duration
	for _, subject := range cfg.TheorySubjects() {
		if cfg.LectureRequirements[subject] <= 0 {
			violations.add("lecture_req_"+subject, fmt.Sprintf("%s must have positive weekly lecture requirement", subject))
		}
	}

	con := cfg.Constraints
	if con.MaxLecturesPerDayTeacher <= 0 {
		violations.add("max_lectures_teacher", "Max lectures per day for teacher must be positive")
	}
	if con.MaxLecturesPerSubjectPerDay <= 0 {
		violations.add("max_lectures_subject", "Max lectures per subject per day must be positive")
	}
	if con.MinLecturesPerDaySection <= 0 {
		violations.add("min_lectures_section", "Min lectures per day for section must be positive")
	}
	if con.MaxLecturesPerDaySection <= 0 {
		violations.add("max_lectures_section", "Max lectures per day for section must be positive")
	}
	if con.MinLecturesPerDaySection >= con.MaxLecturesPerDaySection {
		violations.add("lectures_range", "Min lectures per day must be less than max lectures per day")
	}
	if con.LabSessionDuration <= 0 {
		violations.add("lab_duration", "Lab session duration must be positive")
	}
	if cfg.LabCapacity <= 0 {
		violations.add("lab_capacity", "Lab capacity must be positive")
	}

	teaching := 0
	for _, s := range cfg.Slots {
		if strings.TrimSpace(s) != "" && s != LunchBreakSlot {
			teaching++
		}
	}
	if teaching < 3 {
		violations.add("time_slots", "At least 3 valid time slots are required (excluding lunch break)")
	}

	return len(violations) == 0, violations
}

func validateClass(cls ClassDefinition) map[string]string {
	fields := map[string]string{}

	if strings.TrimSpace(cls.Name) == "" {
		fields["name"] = "Class name is required"
	}
	if countNonBlank(cls.Subjects) == 0 && countNonBlank(cls.LabSubjects) == 0 {
		fields["subjects"] = "At least one subject (theory or lab) is required"
	}
	if countNonBlank(cls.Subjects) < len(cls.Subjects) {
		fields["emptySubjects"] = "All theory subjects must have names"
	}
	if countNonBlank(cls.LabSubjects) < len(cls.LabSubjects) {
		fields["emptyLabSubjects"] = "All lab subjects must have names"
	}
	if len(cls.Sections) == 0 {
		fields["sections"] = "At least one section is required"
	} else {
		for _, sec := range cls.Sections {
			if strings.TrimSpace(sec.Name) == "" || sec.StudentCount <= 0 {
				fields["invalidSections"] = "All sections must have names and positive student counts"
				break
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func countNonBlank(list []string) int {
	n := 0
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
