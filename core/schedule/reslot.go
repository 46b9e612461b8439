package schedule

import (
	"errors"

	"github.com/smartsched/console/core/timetable"
)

var (
	ErrNoAssignment  = errors.New("no assignment found for selected slot")
	ErrLabNotMovable = errors.New("only theory sessions can be shifted to another slot")
)

// AvailableTheorySlots lists the same-day slots the teacher's theory session
// at (day, fromSlot) could move to: neither the section nor the teacher may
// already be busy there, and the lunch slot never qualifies.
func AvailableTheorySlots(sessions []Session, teacher, day, fromSlot string, slots []string) ([]string, error) {
	target := findAssignment(sessions, teacher, day, fromSlot)
	if target == nil {
		return nil, ErrNoAssignment
	}
	if target.Group != "" {
		return nil, ErrLabNotMovable
	}

	available := []string{}
	for _, s := range slots {
		if s == timetable.LunchBreakSlot || s == fromSlot {
			continue
		}
		if sectionBusyAt(sessions, target.Section, day, s) || teacherBusyAt(sessions, teacher, day, s) {
			continue
		}
		available = append(available, s)
	}
	return available, nil
}

// ApplyTheoryReslot moves the teacher's theory session from fromSlot to
// toSlot on the same day, then pulls later sessions of that section forward
// into any gap the move opened.
func ApplyTheoryReslot(sessions []Session, teacher, day, fromSlot, toSlot string, slots []string) ([]Session, error) {
	updated := append([]Session(nil), sessions...)

	idx := -1
	for i, s := range updated {
		if foldEq(s.Teacher, teacher) && s.Day == day && s.Slot == fromSlot {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNoAssignment
	}
	if updated[idx].Group != "" {
		return nil, ErrLabNotMovable
	}
	section := updated[idx].Section
	if sectionBusyAt(updated, section, day, toSlot) {
		return nil, errors.New("selected target slot is not free for this class section")
	}
	if teacherBusyAt(updated, teacher, day, toSlot) {
		return nil, errors.New("teacher is already occupied in selected target slot")
	}

	updated[idx].Slot = toSlot
	updated[idx].MovedFrom = fromSlot
	updated[idx].Moved = true

	return pullForward(updated, section, day, slots, fromSlot), nil
}

// pullForward compacts a section's day starting at startSlot: each free slot
// takes the next later theory session whose teacher and room are free there.
// Lab runs stay where they are.
func pullForward(sessions []Session, section, day string, slotOrder []string, startSlot string) []Session {
	var teaching []string
	for _, s := range slotOrder {
		if s != timetable.LunchBreakSlot {
			teaching = append(teaching, s)
		}
	}
	if len(teaching) == 0 {
		return sessions
	}

	start := 0
	for i, s := range teaching {
		if s == startSlot {
			start = i
			break
		}
	}

	for i := start; i < len(teaching)-1; i++ {
		free := teaching[i]
		if sectionBusyAt(sessions, section, day, free) {
			continue
		}

		for j := i + 1; j < len(teaching); j++ {
			src := teaching[j]
			idx := -1
			for k, s := range sessions {
				if s.Section == section && s.Day == day && s.Slot == src && s.Group == "" {
					idx = k
					break
				}
			}
			if idx < 0 {
				continue
			}

			candidate := sessions[idx]
			if candidate.Teacher != "" && teacherBusyAtExcept(sessions, candidate.Teacher, day, free, idx) {
				continue
			}
			if candidate.Room != "" && roomBusyAtExcept(sessions, candidate.Room, day, free, idx) {
				continue
			}

			sessions[idx].Slot = free
			sessions[idx].MovedFrom = src
			sessions[idx].Moved = true
			break
		}
	}
	return sessions
}

func findAssignment(sessions []Session, teacher, day, slot string) *Session {
	for i, s := range sessions {
		if foldEq(s.Teacher, teacher) && s.Day == day && s.Slot == slot {
			return &sessions[i]
		}
	}
	return nil
}

func sectionBusyAt(sessions []Session, section, day, slot string) bool {
	for _, s := range sessions {
		if s.Section == section && s.Day == day && s.Slot == slot {
			return true
		}
	}
	return false
}

func teacherBusyAt(sessions []Session, teacher, day, slot string) bool {
	return teacherBusyAtExcept(sessions, teacher, day, slot, -1)
}

func teacherBusyAtExcept(sessions []Session, teacher, day, slot string, skip int) bool {
	for i, s := range sessions {
		if i == skip {
			continue
		}
		if foldEq(s.Teacher, teacher) && s.Day == day && s.Slot == slot {
			return true
		}
	}
	return false
}

func roomBusyAtExcept(sessions []Session, room, day, slot string, skip int) bool {
	for i, s := range sessions {
		if i == skip {
			continue
		}
		if s.Room == room && s.Day == day && s.Slot == slot {
			return true
		}
	}
	return false
}
