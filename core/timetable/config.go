package timetable

import "strings"

// LunchBreakSlot is the reserved slot name; it never hosts sessions and is
// rendered with fixed content.
const LunchBreakSlot = "Lunch Break"

type (
	// Section is one student group within a class.
	Section struct {
		Name         string `json:"name"`
		StudentCount int    `json:"student_count"`
	}

	// ClassDefinition groups subjects and sections under one class (e.g. "CSE 3rd Year").
	ClassDefinition struct {
		Name        string    `json:"name"`
		Subjects    []string  `json:"subjects"`
		LabSubjects []string  `json:"lab_subjects"`
		Sections    []Section `json:"sections"`
	}

	// DaySlot is one (day, slot) cell of the week used for teacher unavailability.
	DaySlot struct {
		Day  string `json:"day"`
		Slot string `json:"slot"`
	}

	Constraints struct {
		MaxLecturesPerDayTeacher    int  `json:"max_lectures_per_day_teacher"`
		MaxLecturesPerSubjectPerDay int  `json:"max_lectures_per_subject_per_day"`
		MinLecturesPerDaySection    int  `json:"min_lectures_per_day_section"`
		MaxLecturesPerDaySection    int  `json:"max_lectures_per_day_section"`
		LabSessionDuration          int  `json:"lab_session_duration"`
		DistributeAcrossWeek        bool `json:"distribute_across_week"`
	}

	// Config is the canonical scheduling configuration submitted to the
	// generation service. All maps are keyed by subject (or teacher) name.
	Config struct {
		Classes               []ClassDefinition    `json:"classes"`
		Rooms                 []string             `json:"rooms"`
		Labs                  []string             `json:"labs"`
		LabRooms              map[string][]string  `json:"lab_rooms"`
		Days                  []string             `json:"days"`
		Slots                 []string             `json:"slots"`
		Teachers              map[string][]string  `json:"teachers"`
		LabTeachers           map[string][]string  `json:"lab_teachers"`
		TeacherUnavailability map[string][]DaySlot `json:"teacher_unavailability"`
		LectureRequirements   map[string]int       `json:"lecture_requirements"`
		LabCapacity           int                  `json:"lab_capacity"`
		Constraints           Constraints          `json:"constraints"`
	}
)

const defaultLabCapacity = 30

func DefaultDays() []string {
	return []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
}

func DefaultSlots() []string {
	return []string{
		"9:00-9:55",
		"9:55-10:50",
		"10:50-11:45",
		"11:45-12:40",
		LunchBreakSlot,
		"2:00-2:55",
		"2:55-3:50",
		"3:50-4:45",
	}
}

func DefaultConstraints() Constraints {
	return Constraints{
		MaxLecturesPerDayTeacher:    5,
		MaxLecturesPerSubjectPerDay: 2,
		MinLecturesPerDaySection:    4,
		MaxLecturesPerDaySection:    6,
		LabSessionDuration:          2,
		DistributeAcrossWeek:        true,
	}
}

// New returns a fresh configuration matching the state a user starts editing
// from: one unnamed class with a single empty section and the default
// day/slot universe.
func New() Config {
	return Config{
		Classes: []ClassDefinition{{
			Name:        "",
			Subjects:    []string{},
			LabSubjects: []string{},
			Sections:    []Section{{Name: "", StudentCount: 0}},
		}},
		Rooms:                 []string{},
		Labs:                  []string{},
		LabRooms:              map[string][]string{},
		Days:                  DefaultDays(),
		Slots:                 DefaultSlots(),
		Teachers:              map[string][]string{},
		LabTeachers:           map[string][]string{},
		TeacherUnavailability: map[string][]DaySlot{},
		LectureRequirements:   map[string]int{},
		LabCapacity:           defaultLabCapacity,
		Constraints:           DefaultConstraints(),
	}
}

// TheorySubjects flattens all classes' theory subject lists, skipping blanks.
// First appearance order is kept; duplicates across classes collapse to one.
func (c Config) TheorySubjects() []string {
	return flattenSubjects(c.Classes, false)
}

// LabSubjects flattens all classes' lab subject lists, skipping blanks.
func (c Config) LabSubjects() []string {
	return flattenSubjects(c.Classes, true)
}

func flattenSubjects(classes []ClassDefinition, lab bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cls := range classes {
		subjects := cls.Subjects
		if lab {
			subjects = cls.LabSubjects
		}
		for _, s := range subjects {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// AllTeachers collects every distinct teacher name across theory and lab
// assignments, in first appearance order (theory maps first).
func (c Config) AllTeachers() []string {
	seen := make(map[string]bool)
	var out []string
	collect := func(assignments map[string][]string, subjects []string) {
		for _, subject := range subjects {
			for _, t := range assignments[subject] {
				t = strings.TrimSpace(t)
				if t == "" || seen[t] {
					continue
				}
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	collect(c.Teachers, c.TheorySubjects())
	collect(c.LabTeachers, c.LabSubjects())
	return out
}

// SectionName returns the composite grid identity of a section:
// "<class> - <section>", or the bare class name if the section is unnamed.
func SectionName(class ClassDefinition, section Section) string {
	if section.Name == "" {
		return class.Name
	}
	return class.Name + " - " + section.Name
}

// SectionNames lists the composite names of every section, in class order.
func (c Config) SectionNames() []string {
	var out []string
	for _, cls := range c.Classes {
		for _, sec := range cls.Sections {
			out = append(out, SectionName(cls, sec))
		}
	}
	return out
}

// SectionLabSubjects maps each composite section name to its class' lab
// subjects. The grid composer and cell classifier key off this.
func (c Config) SectionLabSubjects() map[string][]string {
	out := make(map[string][]string)
	for _, cls := range c.Classes {
		for _, sec := range cls.Sections {
			out[SectionName(cls, sec)] = append([]string(nil), cls.LabSubjects...)
		}
	}
	return out
}

// HasSlot reports whether slot belongs to the configured slot universe.
func (c Config) HasSlot(slot string) bool {
	for _, s := range c.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// HasDay reports whether day belongs to the configured day universe.
func (c Config) HasDay(day string) bool {
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}
