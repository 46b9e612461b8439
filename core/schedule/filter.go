package schedule

import "strings"

// MatchSections returns the section names whose grid matches the search term:
// the section name itself, or any of its sessions' subject, teacher or room,
// contains the term case-insensitively. An empty term matches every section.
// The result keeps Sections()' sorted order.
func (l Lookup) MatchSections(term string) []string {
	term = strings.ToLower(term)
	var out []string
	for _, section := range l.Sections() {
		if term == "" || strings.Contains(strings.ToLower(section), term) || l.sessionsMatch(section, term) {
			out = append(out, section)
		}
	}
	return out
}

func (l Lookup) sessionsMatch(section, term string) bool {
	for _, daySlots := range l[section] {
		for _, items := range daySlots {
			for _, s := range items {
				if strings.Contains(strings.ToLower(s.Subject), term) ||
					strings.Contains(strings.ToLower(s.Teacher), term) ||
					strings.Contains(strings.ToLower(s.Room), term) {
					return true
				}
			}
		}
	}
	return false
}
