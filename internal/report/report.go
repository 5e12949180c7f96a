// Package report derives counts, breakdowns and grids from flat log collections.
// Every function scans its input; nothing is indexed or cached.
package report

import (
	"math"
	"sort"
	"time"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
)

// Counts tallies statuses.
type Counts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
}

// Add counts one status.
func (c *Counts) Add(s model.Status) {
	switch s {
	case model.StatusPresent:
		c.Present++
	case model.StatusAbsent:
		c.Absent++
	case model.StatusLate:
		c.Late++
	}
}

// Total is the number of counted records.
func (c Counts) Total() int { return c.Present + c.Absent + c.Late }

// Percent returns round(part/whole*100), or 0 when whole is not positive.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// Totals sums every record of every log.
func Totals(logs []model.ClassAttendanceLog) Counts {
	var c Counts
	for _, l := range logs {
		for _, r := range l.Records {
			c.Add(r.Status)
		}
	}
	return c
}

// ClassBreakdown is the status tally of one class.
type ClassBreakdown struct {
	ClassID string `json:"classId"`
	Label   string `json:"label"`
	Counts
}

// ByClass buckets logs by class id in order of first appearance. Labels come
// from classes; a class missing from the roster keeps its raw id.
func ByClass(logs []model.ClassAttendanceLog, classes []model.ClassSection) []ClassBreakdown {
	labels := labelIndex(classes)
	idx := map[string]int{}
	out := []ClassBreakdown{}
	for _, l := range logs {
		i, ok := idx[l.ClassID]
		if !ok {
			label, known := labels[l.ClassID]
			if !known {
				label = l.ClassID
			}
			i = len(out)
			idx[l.ClassID] = i
			out = append(out, ClassBreakdown{ClassID: l.ClassID, Label: label})
		}
		for _, r := range l.Records {
			out[i].Add(r.Status)
		}
	}
	return out
}

// Completeness compares submitted logs with the number expected.
type Completeness struct {
	Submitted int `json:"submitted"`
	Expected  int `json:"expected"`
	Percent   int `json:"percent"`
}

// ExpectedSubmissions is one log per class per open session.
func ExpectedSubmissions(classes []model.ClassSection, settings model.Settings) int {
	return len(classes) * len(settings.OpenSessions())
}

// CompletenessOf is display-only; the percentage is capped at 100.
func CompletenessOf(logs []model.ClassAttendanceLog, expected int) Completeness {
	p := Percent(len(logs), expected)
	if p > 100 {
		p = 100
	}
	return Completeness{Submitted: len(logs), Expected: expected, Percent: p}
}

// Anomaly is one non-Present record in a student's history.
type Anomaly struct {
	Date        string        `json:"date"`
	Timestamp   int64         `json:"timestamp"`
	Session     model.Session `json:"session"`
	Status      model.Status  `json:"status"`
	Reason      string        `json:"reason"`
	TeacherName string        `json:"teacherName"`
}

// StudentYear is a student's attendance and conduct for one calendar year.
type StudentYear struct {
	StudentID    string                     `json:"studentId"`
	Year         int                        `json:"year"`
	Counts       Counts                     `json:"counts"`
	Sessions     int                        `json:"sessions"`
	Percentage   int                        `json:"percentage"`
	History      []Anomaly                  `json:"history"`
	Disciplinary []model.DisciplinaryRecord `json:"disciplinary"`
}

// StudentYearReport scans every log of year holding a record for studentID.
// History is sorted newest first. incidents must already be the student's
// incidents for year, escalated or not; they are carried in the given order.
func StudentYearReport(cal *calendar.Calendar, logs []model.ClassAttendanceLog, incidents []model.DisciplinaryRecord, studentID string, year int) StudentYear {
	rep := StudentYear{StudentID: studentID, Year: year, History: []Anomaly{}, Disciplinary: []model.DisciplinaryRecord{}}
	for _, l := range logs {
		day := cal.OfMillis(l.Timestamp)
		if day.Year != year {
			continue
		}
		r, ok := l.Record(studentID)
		if !ok {
			continue
		}
		rep.Counts.Add(r.Status)
		if r.Status != model.StatusPresent {
			rep.History = append(rep.History, Anomaly{
				Date:        day.String(),
				Timestamp:   l.Timestamp,
				Session:     l.Session,
				Status:      r.Status,
				Reason:      r.Reason,
				TeacherName: l.TeacherName,
			})
		}
	}
	sort.SliceStable(rep.History, func(i, j int) bool { return rep.History[i].Timestamp > rep.History[j].Timestamp })

	if incidents != nil {
		rep.Disciplinary = incidents
	}

	rep.Sessions = rep.Counts.Total()
	rep.Percentage = Percent(rep.Counts.Present, rep.Sessions)
	return rep
}

// GridCell holds the Morning and Evening status of one day; an empty
// status means no record.
type GridCell struct {
	Morning model.Status `json:"morning,omitempty"`
	Evening model.Status `json:"evening,omitempty"`
}

// GridRow is one student's month.
type GridRow struct {
	Student model.Student `json:"student"`
	Days    []GridCell    `json:"days"`
}

// MonthGrid is a class's month, one row per current roster student.
type MonthGrid struct {
	ClassID string     `json:"classId"`
	Label   string     `json:"label"`
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Days    int        `json:"days"`
	Rows    []GridRow  `json:"rows"`
}

type slot struct {
	day     int
	session model.Session
}

// BuildMonthGrid lays the class's logs for year/month onto a day-by-day grid.
func BuildMonthGrid(cal *calendar.Calendar, logs []model.ClassAttendanceLog, class model.ClassSection, year int, month time.Month) MonthGrid {
	days := calendar.DaysIn(year, month)
	bySlot := map[slot]model.ClassAttendanceLog{}
	for _, l := range logs {
		if l.ClassID != class.ID {
			continue
		}
		d := cal.OfMillis(l.Timestamp)
		if d.Year != year || d.Month != month {
			continue
		}
		k := slot{d.Day, l.Session}
		if prev, ok := bySlot[k]; ok && prev.Timestamp > l.Timestamp {
			continue
		}
		bySlot[k] = l
	}

	grid := MonthGrid{ClassID: class.ID, Label: class.Label(), Year: year, Month: month, Days: days, Rows: make([]GridRow, 0, len(class.Students))}
	for _, st := range class.Students {
		row := GridRow{Student: st, Days: make([]GridCell, days)}
		for d := 1; d <= days; d++ {
			if l, ok := bySlot[slot{d, model.SessionMorning}]; ok {
				if r, ok := l.Record(st.ID); ok {
					row.Days[d-1].Morning = r.Status
				}
			}
			if l, ok := bySlot[slot{d, model.SessionEvening}]; ok {
				if r, ok := l.Record(st.ID); ok {
					row.Days[d-1].Evening = r.Status
				}
			}
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func labelIndex(classes []model.ClassSection) map[string]string {
	m := make(map[string]string, len(classes))
	for _, c := range classes {
		m[c.ID] = c.Label()
	}
	return m
}
