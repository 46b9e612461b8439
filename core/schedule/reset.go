package schedule

import (
	"github.com/smartsched/console/core/timetable"
)

// occupancy tracks which (room|teacher, day, slot) combinations are taken
// while compacting a day.
type occKey struct {
	name string
	day  string
	slot string
}

// ResetTeacher removes the named teacher's assignment at (day, slot) from the
// placed sessions and compacts the affected sections' day by pulling later
// sessions into the freed slots. Cancelling one slice of a multi-slot lab
// cancels that lab group's entire day. Moves respect room and teacher
// occupancy, the teacher unavailability matrix, and never split a lab block
// across the lunch slot. Moved sessions are flagged with the slot they came
// from; flags from earlier resets are discarded.
func ResetTeacher(cfg timetable.Config, sessions []Session, teacher, day, slot string) []Session {
	grid := map[string]map[string]map[string][]Session{}
	for _, section := range cfg.SectionNames() {
		grid[section] = map[string]map[string][]Session{}
		for _, d := range cfg.Days {
			grid[section][d] = map[string][]Session{}
		}
	}
	for _, s := range sessions {
		days, ok := grid[s.Section]
		if !ok {
			continue // stale section not in the current config
		}
		slots, ok := days[s.Day]
		if !ok || !cfg.HasSlot(s.Slot) {
			continue
		}
		s.Moved = false
		s.MovedFrom = ""
		slots[s.Slot] = append(slots[s.Slot], s)
	}

	changed := map[string]bool{}
	if teacher != "" && day != "" && slot != "" {
		for section := range grid {
			if resetSectionSlot(grid[section][day], cfg.Slots, teacher, slot) {
				changed[section] = true
			}
		}
	}

	usedRooms := map[occKey]bool{}
	usedTeachers := map[occKey]bool{}
	for _, days := range grid {
		for d, slots := range days {
			for s, items := range slots {
				for _, item := range items {
					if item.Room != "" {
						usedRooms[occKey{item.Room, d, s}] = true
					}
					if item.Teacher != "" {
						usedTeachers[occKey{item.Teacher, d, s}] = true
					}
				}
			}
		}
	}

	movedFrom := map[occKey]string{} // (section, day, dest slot) -> source slot
	for _, section := range cfg.SectionNames() {
		if changed[section] {
			compactDay(cfg, grid[section][day], section, day, usedRooms, usedTeachers, movedFrom)
		}
	}

	var out []Session
	for _, section := range cfg.SectionNames() {
		for _, d := range cfg.Days {
			for _, s := range cfg.Slots {
				for _, item := range grid[section][d][s] {
					item.Section = section
					item.Day = d
					item.Slot = s
					if from, ok := movedFrom[occKey{section, d, s}]; ok {
						item.MovedFrom = from
						item.Moved = true
					}
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// resetSectionSlot drops the teacher's entries at slot and, for lab entries,
// the whole lab group run across the day. Reports whether anything changed.
func resetSectionSlot(daySlots map[string][]Session, slots []string, teacher, slot string) bool {
	changedAny := false
	var cancelled []Session
	for _, item := range daySlots[slot] {
		if foldEq(item.Teacher, teacher) && item.Group != "" {
			cancelled = append(cancelled, item)
		}
	}
	for _, lab := range cancelled {
		for _, s := range slots {
			if s == timetable.LunchBreakSlot {
				continue
			}
			kept := daySlots[s][:0]
			for _, item := range daySlots[s] {
				if item.Group != "" && item.Subject == lab.Subject && item.Group == lab.Group && foldEq(item.Teacher, teacher) {
					changedAny = true
					continue
				}
				kept = append(kept, item)
			}
			daySlots[s] = kept
		}
	}

	kept := daySlots[slot][:0]
	for _, item := range daySlots[slot] {
		if foldEq(item.Teacher, teacher) {
			changedAny = true
			continue
		}
		kept = append(kept, item)
	}
	daySlots[slot] = kept
	return changedAny
}

// compactDay pulls later same-day sessions into earlier free slots, theory
// sessions one slot at a time and lab runs only as whole blocks.
func compactDay(cfg timetable.Config, daySlots map[string][]Session, section, day string, usedRooms, usedTeachers map[occKey]bool, movedFrom map[occKey]string) {
	var teaching []string
	for _, s := range cfg.Slots {
		if s != timetable.LunchBreakSlot {
			teaching = append(teaching, s)
		}
	}

	for i := 0; i < len(teaching); i++ {
		dest := teaching[i]
		if len(daySlots[dest]) > 0 {
			continue
		}

		moved := false
		for j := i + 1; j < len(teaching) && !moved; j++ {
			src := teaching[j]
			if len(daySlots[src]) == 0 {
				continue
			}
			candidate := daySlots[src][0]

			if candidate.Group == "" {
				moved = moveTheory(cfg, daySlots, candidate, day, src, dest, usedRooms, usedTeachers)
				if moved {
					movedFrom[occKey{section, day, dest}] = src
				}
				continue
			}
			moved = moveLabBlock(cfg, daySlots, candidate, section, day, teaching, i, j, usedRooms, usedTeachers, movedFrom)
		}
		if moved {
			// the freed slot is filled now; rescan it before advancing
			i--
		}
	}
}

func moveTheory(cfg timetable.Config, daySlots map[string][]Session, candidate Session, day, src, dest string, usedRooms, usedTeachers map[occKey]bool) bool {
	if candidate.Teacher != "" {
		if teacherUnavailableOn(cfg, candidate.Teacher, day, dest) || usedTeachers[occKey{candidate.Teacher, day, dest}] {
			return false
		}
	}
	if candidate.Room != "" && usedRooms[occKey{candidate.Room, day, dest}] {
		return false
	}

	daySlots[src] = withoutSession(daySlots[src], candidate)
	daySlots[dest] = []Session{candidate}
	if candidate.Room != "" {
		delete(usedRooms, occKey{candidate.Room, day, src})
		usedRooms[occKey{candidate.Room, day, dest}] = true
	}
	if candidate.Teacher != "" {
		delete(usedTeachers, occKey{candidate.Teacher, day, src})
		usedTeachers[occKey{candidate.Teacher, day, dest}] = true
	}
	return true
}

func moveLabBlock(cfg timetable.Config, daySlots map[string][]Session, candidate Session, section, day string, teaching []string, i, j int, usedRooms, usedTeachers map[occKey]bool, movedFrom map[occKey]string) bool {
	dur := candidate.SpanSlots()
	if i+dur > len(teaching) || j+dur > len(teaching) {
		return false
	}
	srcBlock := teaching[j : j+dur]
	destBlock := teaching[i : i+dur]
	if hasLunchBetween(cfg.Slots, srcBlock) || hasLunchBetween(cfg.Slots, destBlock) {
		return false
	}

	for _, s := range srcBlock {
		if !containsLabPlacement(daySlots[s], candidate) {
			return false
		}
	}
	for _, s := range destBlock {
		if len(daySlots[s]) > 0 {
			return false
		}
		if candidate.Teacher != "" {
			if teacherUnavailableOn(cfg, candidate.Teacher, day, s) || usedTeachers[occKey{candidate.Teacher, day, s}] {
				return false
			}
		}
		if candidate.Room != "" && usedRooms[occKey{candidate.Room, day, s}] {
			return false
		}
	}

	for _, s := range srcBlock {
		kept := daySlots[s][:0]
		for _, item := range daySlots[s] {
			if !sameLabPlacement(item, candidate) {
				kept = append(kept, item)
			}
		}
		daySlots[s] = kept
		if candidate.Room != "" {
			delete(usedRooms, occKey{candidate.Room, day, s})
		}
		if candidate.Teacher != "" {
			delete(usedTeachers, occKey{candidate.Teacher, day, s})
		}
	}
	for k, s := range destBlock {
		daySlots[s] = []Session{candidate}
		if candidate.Room != "" {
			usedRooms[occKey{candidate.Room, day, s}] = true
		}
		if candidate.Teacher != "" {
			usedTeachers[occKey{candidate.Teacher, day, s}] = true
		}
		movedFrom[occKey{section, day, s}] = srcBlock[k]
	}
	return true
}

func teacherUnavailableOn(cfg timetable.Config, teacher, day, slot string) bool {
	for _, u := range cfg.TeacherUnavailability[teacher] {
		if u.Day == day && u.Slot == slot {
			return true
		}
	}
	return false
}

func hasLunchBetween(slots, block []string) bool {
	lunch := -1
	for i, s := range slots {
		if s == timetable.LunchBreakSlot {
			lunch = i
			break
		}
	}
	if lunch < 0 || len(block) == 0 {
		return false
	}
	lo, hi := len(slots), -1
	for _, name := range block {
		for i, s := range slots {
			if s == name {
				if i < lo {
					lo = i
				}
				if i > hi {
					hi = i
				}
			}
		}
	}
	return lo < lunch && lunch < hi
}

func containsLabPlacement(items []Session, lab Session) bool {
	for _, item := range items {
		if sameLabPlacement(item, lab) {
			return true
		}
	}
	return false
}

func withoutSession(items []Session, target Session) []Session {
	out := items[:0]
	removed := false
	for _, item := range items {
		if !removed && item == target {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out
}
