package schedule

import (
	"sort"

	"github.com/smartsched/console/core/timetable"
)

type (
	// Lookup indexes sessions by section, day and slot for constant-time
	// cell access while composing a grid.
	Lookup map[string]map[string]map[string][]Session

	// CellKind tells a renderer what a cell fundamentally is.
	CellKind int

	// LabEntry is a lab session annotated with its rendered span: the number
	// of consecutive slots it occupies, clamped at the end of the slot list,
	// and the slot it runs until.
	LabEntry struct {
		Session
		Span    int    `json:"span"`
		EndSlot string `json:"end_slot"`
	}

	// Cell is one (day, slot) cell of a section's grid. Lab entries appear
	// only in the cell where their run starts; continuation cells of a
	// multi-slot lab come out empty unless something else is placed there.
	Cell struct {
		Day       string     `json:"day"`
		Slot      string     `json:"slot"`
		Kind      CellKind   `json:"kind"`
		Moved     bool       `json:"moved,omitempty"`
		Labs      []LabEntry `json:"labs,omitempty"`
		Workshops []Session  `json:"workshops,omitempty"`
		Theory    []Session  `json:"theory,omitempty"`
	}

	// SectionGrid is the fully composed week for one section, cells indexed
	// by [day][slot] following the configured day and slot order.
	SectionGrid struct {
		Section string   `json:"section"`
		Cells   [][]Cell `json:"cells"`
	}

	// Grid is the composed timetable for every section present in a result.
	Grid struct {
		Days     []string      `json:"days"`
		Slots    []string      `json:"slots"`
		Sections []SectionGrid `json:"sections"`
	}
)

const (
	CellClass CellKind = iota // holds sessions
	CellLunch                 // reserved lunch slot
	CellFree                  // no sessions placed
)

func (k CellKind) String() string {
	switch k {
	case CellLunch:
		return "lunch"
	case CellFree:
		return "free"
	default:
		return "class"
	}
}

func (k CellKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// BuildLookup groups sessions by section, day and slot, preserving input
// order within each cell.
func BuildLookup(sessions []Session) Lookup {
	l := Lookup{}
	for _, s := range sessions {
		days, ok := l[s.Section]
		if !ok {
			days = map[string]map[string][]Session{}
			l[s.Section] = days
		}
		slots, ok := days[s.Day]
		if !ok {
			slots = map[string][]Session{}
			days[s.Day] = slots
		}
		slots[s.Slot] = append(slots[s.Slot], s)
	}
	return l
}

// Sections lists the section names present, sorted.
func (l Lookup) Sections() []string {
	out := make([]string, 0, len(l))
	for name := range l {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// At returns the sessions placed in one cell, nil when empty.
func (l Lookup) At(section, day, slot string) []Session {
	return l[section][day][slot]
}

// Compose builds the rendered grid for every section in sessions. Multi-slot
// labs surface once, in their starting cell; a lab session is a continuation
// when an identical placement (subject, group, room, teacher) occupies any of
// the duration-1 preceding slots. Cells on the reserved lunch slot are always
// lunch cells and cells with no sessions are free cells, whatever the search
// or generation produced.
func Compose(sessions []Session, cfg timetable.Config) Grid {
	lookup := BuildLookup(sessions)
	labSubjects := cfg.SectionLabSubjects()

	grid := Grid{
		Days:  append([]string(nil), cfg.Days...),
		Slots: append([]string(nil), cfg.Slots...),
	}
	for _, section := range lookup.Sections() {
		sg := SectionGrid{Section: section}
		for _, day := range grid.Days {
			row := make([]Cell, 0, len(grid.Slots))
			for i, slot := range grid.Slots {
				row = append(row, composeCell(lookup, section, day, slot, i, grid.Slots, labSubjects[section]))
			}
			sg.Cells = append(sg.Cells, row)
		}
		grid.Sections = append(grid.Sections, sg)
	}
	return grid
}

func composeCell(lookup Lookup, section, day, slot string, slotIdx int, slots []string, labSubjects []string) Cell {
	cell := Cell{Day: day, Slot: slot, Kind: CellClass}
	if slot == timetable.LunchBreakSlot {
		cell.Kind = CellLunch
		return cell
	}

	items := lookup.At(section, day, slot)
	if len(items) == 0 {
		cell.Kind = CellFree
		return cell
	}

	isLab := func(subject string) bool {
		for _, s := range labSubjects {
			if s == subject {
				return true
			}
		}
		return false
	}

	for _, item := range items {
		if item.Moved {
			cell.Moved = true
		}
		switch {
		case isLab(item.Subject):
			if spanStartsHere(lookup, section, day, slotIdx, slots, item) {
				cell.Labs = append(cell.Labs, labEntry(item, slotIdx, slots))
			}
		case item.Subject == WorkshopSubject:
			cell.Workshops = append(cell.Workshops, item)
		default:
			cell.Theory = append(cell.Theory, item)
		}
	}

	// a cell holding only continuation slices of a lab keeps CellClass with
	// no entries, so the span started earlier stays visually unbroken
	return cell
}

// spanStartsHere reports whether lab is the first slice of its run: no
// identical placement sits in any of the duration-1 preceding slots.
func spanStartsHere(lookup Lookup, section, day string, slotIdx int, slots []string, lab Session) bool {
	dur := lab.SpanSlots()
	if dur <= 1 || slotIdx <= 0 {
		return true
	}
	for back := 1; back < dur && slotIdx-back >= 0; back++ {
		for _, prev := range lookup.At(section, day, slots[slotIdx-back]) {
			if sameLabPlacement(prev, lab) {
				return false
			}
		}
	}
	return true
}

func labEntry(lab Session, slotIdx int, slots []string) LabEntry {
	end := slotIdx + lab.SpanSlots() - 1
	if end > len(slots)-1 {
		end = len(slots) - 1
	}
	return LabEntry{
		Session: lab,
		Span:    end - slotIdx + 1,
		EndSlot: slots[end],
	}
}
