package report

import (
	"sort"

	"rollcall/internal/model"
)

// ClassSnapshot is a class's standing for the day, taken from its latest log.
type ClassSnapshot struct {
	ClassID     string        `json:"classId"`
	Label       string        `json:"label"`
	Strength    int           `json:"strength"`
	Present     int           `json:"present"`
	Late        int           `json:"late"`
	Absent      int           `json:"absent"`
	Percentage  int           `json:"percentage"`
	HasData     bool          `json:"hasData"`
	Session     model.Session `json:"session,omitempty"`
	TeacherName string        `json:"teacherName,omitempty"`
}

// Snapshots returns one entry per roster class in roster order. Percentage is
// present over current roster strength.
func Snapshots(dayLogs []model.ClassAttendanceLog, classes []model.ClassSection) []ClassSnapshot {
	latest := map[string]model.ClassAttendanceLog{}
	for _, l := range dayLogs {
		if prev, ok := latest[l.ClassID]; !ok || l.Timestamp > prev.Timestamp {
			latest[l.ClassID] = l
		}
	}
	out := make([]ClassSnapshot, 0, len(classes))
	for _, c := range classes {
		snap := ClassSnapshot{ClassID: c.ID, Label: c.Label(), Strength: len(c.Students)}
		if l, ok := latest[c.ID]; ok {
			var n Counts
			for _, r := range l.Records {
				n.Add(r.Status)
			}
			snap.Present, snap.Late, snap.Absent = n.Present, n.Late, n.Absent
			snap.HasData = true
			snap.Session = l.Session
			snap.TeacherName = l.TeacherName
		}
		snap.Percentage = Percent(snap.Present, snap.Strength)
		out = append(out, snap)
	}
	return out
}

// Issue kinds, in descending priority.
const (
	IssueDisciplinary = "Disciplinary"
	IssueAbsent       = "Absent"
	IssueLate         = "Late"
)

// Issue is one line of the leadership attention list.
type Issue struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	StudentName string `json:"studentName"`
	ClassName   string `json:"className"`
	Reason      string `json:"reason"`
	Teacher     string `json:"teacher"`
	Session     string `json:"session"`
	Timestamp   int64  `json:"timestamp"`
}

// Issues lists every non-Present record in dayLogs plus the given escalated
// incidents, disciplinary first, then absences, then lateness.
func Issues(dayLogs []model.ClassAttendanceLog, classes []model.ClassSection, escalated []model.DisciplinaryRecord) []Issue {
	byID := make(map[string]model.ClassSection, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}

	out := []Issue{}
	for _, l := range dayLogs {
		cls, known := byID[l.ClassID]
		className := l.ClassID
		if known {
			className = cls.Label()
		}
		for _, r := range l.Records {
			if r.Status == model.StatusPresent {
				continue
			}
			name := "Unknown"
			if st, ok := cls.Student(r.StudentID); known && ok {
				name = st.Name
			}
			reason := r.Reason
			if reason == "" {
				reason = "No reason provided"
			}
			kind := IssueLate
			if r.Status == model.StatusAbsent {
				kind = IssueAbsent
			}
			out = append(out, Issue{
				ID:          r.StudentID + l.ID,
				Kind:        kind,
				StudentName: name,
				ClassName:   className,
				Reason:      reason,
				Teacher:     l.TeacherName,
				Session:     string(l.Session),
				Timestamp:   l.Timestamp,
			})
		}
	}
	for _, d := range escalated {
		out = append(out, Issue{
			ID:          d.ID,
			Kind:        IssueDisciplinary,
			StudentName: d.StudentName,
			ClassName:   d.ClassName,
			Reason:      d.Description,
			Teacher:     d.ReportedBy,
			Session:     "Reported",
			Timestamp:   d.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return priority(out[i].Kind) > priority(out[j].Kind) })
	return out
}

func priority(kind string) int {
	switch kind {
	case IssueDisciplinary:
		return 3
	case IssueAbsent:
		return 2
	}
	return 1
}
