package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsched/console/core/timetable"
)

func sessionAt(sessions []Session, day, slot string) *Session {
	for i, s := range sessions {
		if s.Day == day && s.Slot == slot {
			return &sessions[i]
		}
	}
	return nil
}

func TestResetTeacher(t *testing.T) {
	cfg := gridConfig()

	t.Run("removes the assignment and pulls later sessions forward", func(t *testing.T) {
		sessions := []Session{
			{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Maths", Room: "101", Teacher: "Rao"},
			{Section: "CSE - A", Day: "Monday", Slot: "S2", Subject: "Physics", Room: "102", Teacher: "Iyer"},
			{Section: "CSE - A", Day: "Monday", Slot: "S3", Subject: "Maths", Room: "101", Teacher: "Rao"},
		}
		out := ResetTeacher(cfg, sessions, "Iyer", "Monday", "S2")

		require.Len(t, out, 2)
		for _, s := range out {
			assert.NotEqual(t, "Iyer", s.Teacher)
		}
		moved := sessionAt(out, "Monday", "S2")
		require.NotNil(t, moved, "later session compacts into the freed slot")
		assert.Equal(t, "S3", moved.MovedFrom)
		assert.True(t, moved.Moved)
		assert.Nil(t, sessionAt(out, "Monday", "S3"))
	})

	t.Run("teacher name matching ignores case", func(t *testing.T) {
		sessions := []Session{
			{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Maths", Room: "101", Teacher: "Rao"},
		}
		out := ResetTeacher(cfg, sessions, "rao", "Monday", "S1")
		assert.Empty(t, out)
	})

	t.Run("cancelling one lab slice cancels the whole day run", func(t *testing.T) {
		lab := func(slot string) Session {
			return Session{Section: "CSE - A", Day: "Monday", Slot: slot, Subject: "Physics Lab",
				Room: "L1", Teacher: "Iyer", Group: "G1", Duration: 2}
		}
		sessions := []Session{lab("S1"), lab("S2"),
			{Section: "CSE - A", Day: "Monday", Slot: "S3", Subject: "Maths", Room: "101", Teacher: "Rao"}}

		out := ResetTeacher(cfg, sessions, "Iyer", "Monday", "S2")
		for _, s := range out {
			assert.NotEqual(t, "Physics Lab", s.Subject)
		}
		// the surviving theory session compacts to the front of the day
		moved := sessionAt(out, "Monday", "S1")
		require.NotNil(t, moved)
		assert.Equal(t, "Maths", moved.Subject)
		assert.Equal(t, "S3", moved.MovedFrom)
	})

	t.Run("compaction respects teacher unavailability", func(t *testing.T) {
		cfg := gridConfig()
		cfg.TeacherUnavailability = map[string][]timetable.DaySlot{
			"Rao": {{Day: "Monday", Slot: "S1"}},
		}
		sessions := []Session{
			{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Physics", Room: "102", Teacher: "Iyer"},
			{Section: "CSE - A", Day: "Monday", Slot: "S2", Subject: "Maths", Room: "101", Teacher: "Rao"},
		}
		out := ResetTeacher(cfg, sessions, "Iyer", "Monday", "S1")
		require.Len(t, out, 1)
		assert.Equal(t, "S2", out[0].Slot, "Rao cannot move into an unavailable slot")
		assert.False(t, out[0].Moved)
	})

	t.Run("compaction respects room occupancy in other sections", func(t *testing.T) {
		cfg := gridConfig()
		cfg.Classes = append(cfg.Classes, timetable.ClassDefinition{
			Name:     "ECE",
			Subjects: []string{"Signals"},
			Sections: []timetable.Section{{Name: "B", StudentCount: 50}},
		})
		sessions := []Session{
			{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Physics", Room: "102", Teacher: "Iyer"},
			{Section: "CSE - A", Day: "Monday", Slot: "S2", Subject: "Maths", Room: "101", Teacher: "Rao"},
			{Section: "ECE - B", Day: "Monday", Slot: "S1", Subject: "Signals", Room: "101", Teacher: "Das"},
		}
		out := ResetTeacher(cfg, sessions, "Iyer", "Monday", "S1")
		maths := sessionAt(FilterBySection(out, "CSE - A"), "Monday", "S2")
		require.NotNil(t, maths, "room 101 is taken at S1, Maths stays put")
		assert.False(t, maths.Moved)
	})

	t.Run("stale moved flags are cleared", func(t *testing.T) {
		sessions := []Session{
			{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Maths", Room: "101", Teacher: "Rao", Moved: true, MovedFrom: "S4"},
		}
		out := ResetTeacher(cfg, sessions, "Iyer", "Tuesday", "S1")
		require.Len(t, out, 1)
		assert.False(t, out[0].Moved)
		assert.Empty(t, out[0].MovedFrom)
	})
}

func TestApplyTheoryReslot(t *testing.T) {
	cfg := gridConfig()
	sessions := []Session{
		{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Maths", Room: "101", Teacher: "Rao"},
		{Section: "CSE - A", Day: "Monday", Slot: "S2", Subject: "Physics", Room: "102", Teacher: "Iyer"},
	}

	t.Run("moves the session and flags it", func(t *testing.T) {
		// other-section sessions pin room 101 and Iyer early in the day so
		// the pull-forward pass cannot repack the freed slot
		dense := append(append([]Session(nil), sessions...),
			Session{Section: "ECE - B", Day: "Monday", Slot: "S1", Subject: "Signals", Room: "101", Teacher: "Iyer"},
			Session{Section: "ECE - B", Day: "Monday", Slot: "S3", Subject: "Circuits", Room: "101", Teacher: "Das"},
		)
		out, err := ApplyTheoryReslot(dense, "Rao", "Monday", "S1", "S4", cfg.Slots)
		require.NoError(t, err)
		moved := sessionAt(FilterByTeacher(out, "Rao"), "Monday", "S4")
		require.NotNil(t, moved)
		assert.Equal(t, "S1", moved.MovedFrom)
		assert.True(t, moved.Moved)
	})

	t.Run("pull forward packs the vacated slot", func(t *testing.T) {
		out, err := ApplyTheoryReslot(sessions, "Rao", "Monday", "S1", "S4", cfg.Slots)
		require.NoError(t, err)
		pulled := sessionAt(FilterByTeacher(out, "Iyer"), "Monday", "S1")
		require.NotNil(t, pulled, "Physics moves up into the freed first slot")
		assert.Equal(t, "S2", pulled.MovedFrom)
	})

	t.Run("target slot busy for section", func(t *testing.T) {
		_, err := ApplyTheoryReslot(sessions, "Rao", "Monday", "S1", "S2", cfg.Slots)
		assert.Error(t, err)
	})

	t.Run("labs cannot be re-slotted", func(t *testing.T) {
		labs := []Session{{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Physics Lab",
			Room: "L1", Teacher: "Iyer", Group: "G1", Duration: 2}}
		_, err := ApplyTheoryReslot(labs, "Iyer", "Monday", "S1", "S3", cfg.Slots)
		assert.Equal(t, ErrLabNotMovable, err)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := ApplyTheoryReslot(sessions, "Das", "Monday", "S1", "S3", cfg.Slots)
		assert.Equal(t, ErrNoAssignment, err)
	})
}

func TestAvailableTheorySlots(t *testing.T) {
	cfg := gridConfig()
	sessions := []Session{
		{Section: "CSE - A", Day: "Monday", Slot: "S1", Subject: "Maths", Room: "101", Teacher: "Rao"},
		{Section: "CSE - A", Day: "Monday", Slot: "S2", Subject: "Physics", Room: "102", Teacher: "Iyer"},
		{Section: "ECE - B", Day: "Monday", Slot: "S3", Subject: "Stats", Room: "202", Teacher: "Rao"},
	}

	available, err := AvailableTheorySlots(sessions, "Rao", "Monday", "S1", cfg.Slots)
	require.NoError(t, err)
	// S2 busy for the section, S3 busy for Rao, lunch excluded
	assert.Equal(t, []string{"S4", "S5"}, available)
}
