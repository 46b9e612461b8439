package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Normalize coerces an arbitrary decoded JSON value (imported file, persisted
// snapshot) into a canonical Config. It never fails: absent or mistyped fields
// fall back to declared defaults, map keys are stringified and list values
// filtered down to usable entries. Normalizing an already-canonical value
// returns an equal Config.
func Normalize(v interface{}) Config {
	m, _ := v.(map[string]interface{})

	cfg := Config{
		Classes:               normalizeClasses(m["classes"]),
		Rooms:                 stringList(m["rooms"]),
		Labs:                  stringList(m["labs"]),
		LabRooms:              stringListMap(m["lab_rooms"]),
		Days:                  stringList(m["days"]),
		Slots:                 stringList(m["slots"]),
		Teachers:              stringListMap(m["teachers"]),
		LabTeachers:           stringListMap(m["lab_teachers"]),
		TeacherUnavailability: normalizeUnavailability(m["teacher_unavailability"]),
		LectureRequirements:   intMap(m["lecture_requirements"]),
		LabCapacity:           intOr(m["lab_capacity"], defaultLabCapacity),
		Constraints:           normalizeConstraints(m["constraints"]),
	}

	// A days key the file actually carries wins, even when empty; only an
	// absent key gets the weekday default. Empty slots are always synthesized.
	if _, ok := m["days"]; !ok {
		cfg.Days = DefaultDays()
	}
	if len(cfg.Slots) == 0 {
		cfg.Slots = hourSlots(5)
	}
	if cfg.LabCapacity == 0 {
		cfg.LabCapacity = defaultLabCapacity
	}
	return cfg
}

// ImportErrors reports human-readable structural problems with a freshly
// normalized configuration. It gates imports only; feasibility is Validate's
// job. Normalization already guarantees the field types, so only emptiness
// of the required collections can still be wrong here.
func ImportErrors(cfg Config) []string {
	var errs []string
	if len(cfg.Classes) == 0 {
		errs = append(errs, "Classes missing")
	}
	if len(cfg.Slots) == 0 {
		errs = append(errs, "Slots missing")
	}
	if len(cfg.Days) == 0 {
		errs = append(errs, "Days missing")
	}
	return errs
}

// hourSlots synthesizes n back-to-back hour slots starting at 9:00.
func hourSlots(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%d:00-%d:00", 9+i, 10+i))
	}
	return out
}

func normalizeClasses(v interface{}) []ClassDefinition {
	list, ok := v.([]interface{})
	if !ok {
		return []ClassDefinition{}
	}
	out := make([]ClassDefinition, 0, len(list))
	for _, item := range list {
		m, _ := item.(map[string]interface{})
		out = append(out, ClassDefinition{
			Name:        strings.TrimSpace(scalarString(m["name"])),
			Subjects:    stringList(m["subjects"]),
			LabSubjects: stringList(m["lab_subjects"]),
			Sections:    normalizeSections(m["sections"]),
		})
	}
	return out
}

func normalizeSections(v interface{}) []Section {
	list, ok := v.([]interface{})
	if !ok {
		// a class without a sections list gets one default section
		return []Section{{Name: "A", StudentCount: 0}}
	}
	out := make([]Section, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Section{
				Name:         strings.TrimSpace(scalarString(m["name"])),
				StudentCount: intOr(m["student_count"], 0),
			})
		} else {
			// legacy shape: a bare section name
			out = append(out, Section{Name: strings.TrimSpace(scalarString(item))})
		}
	}
	return out
}

func normalizeUnavailability(v interface{}) map[string][]DaySlot {
	m, ok := v.(map[string]interface{})
	if !ok {
		return map[string][]DaySlot{}
	}
	out := make(map[string][]DaySlot, len(m))
	for teacher, raw := range m {
		entries := []DaySlot{}
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				em, _ := item.(map[string]interface{})
				ds := DaySlot{
					Day:  scalarString(em["day"]),
					Slot: scalarString(em["slot"]),
				}
				if ds.Day != "" && ds.Slot != "" {
					entries = append(entries, ds)
				}
			}
		}
		out[teacher] = entries
	}
	return out
}

func normalizeConstraints(v interface{}) Constraints {
	def := DefaultConstraints()
	m, ok := v.(map[string]interface{})
	if !ok {
		return def
	}
	return Constraints{
		MaxLecturesPerDayTeacher:    intField(m, "max_lectures_per_day_teacher", def.MaxLecturesPerDayTeacher),
		MaxLecturesPerSubjectPerDay: intField(m, "max_lectures_per_subject_per_day", def.MaxLecturesPerSubjectPerDay),
		MinLecturesPerDaySection:    intField(m, "min_lectures_per_day_section", def.MinLecturesPerDaySection),
		MaxLecturesPerDaySection:    intField(m, "max_lectures_per_day_section", def.MaxLecturesPerDaySection),
		LabSessionDuration:          intField(m, "lab_session_duration", def.LabSessionDuration),
		DistributeAcrossWeek:        boolField(m, "distribute_across_week", def.DistributeAcrossWeek),
	}
}

// scalarString stringifies scalar JSON values; anything else becomes "".
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func stringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringListMap(v interface{}) map[string][]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(m))
	for key, raw := range m {
		out[key] = stringList(raw)
	}
	return out
}

func intMap(v interface{}) map[string]int {
	m, ok := v.(map[string]interface{})
	if !ok {
		return map[string]int{}
	}
	out := make(map[string]int, len(m))
	for key, raw := range m {
		out[key] = intOr(raw, 0)
	}
	return out
}

// intOr coerces numeric-ish values to int, falling back to def when the
// value is absent or not a number.
func intOr(v interface{}, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

func intField(m map[string]interface{}, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	return intOr(v, def)
}

func boolField(m map[string]interface{}, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
