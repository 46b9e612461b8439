package timetable

// SyncAssignments reconciles the subject-keyed assignment maps with the
// current subject universe. New theory subjects get a single empty teacher
// slot so the form has a row to fill in, new lab subjects additionally get an
// empty room list, and entries for subjects that no longer exist anywhere are
// pruned. Entries for surviving subjects pass through untouched, so running
// SyncAssignments twice is the same as running it once.
func SyncAssignments(cfg Config) Config {
	theory := cfg.TheorySubjects()
	labs := cfg.LabSubjects()

	cfg.Teachers = syncMap(cfg.Teachers, theory, []string{""})
	cfg.LabTeachers = syncMap(cfg.LabTeachers, labs, []string{""})
	cfg.LabRooms = syncMap(cfg.LabRooms, labs, []string{})
	return cfg
}

func syncMap(existing map[string][]string, subjects []string, seed []string) map[string][]string {
	out := make(map[string][]string, len(subjects))
	for _, s := range subjects {
		if cur, ok := existing[s]; ok {
			out[s] = cur
		} else {
			out[s] = append([]string(nil), seed...)
		}
	}
	return out
}
