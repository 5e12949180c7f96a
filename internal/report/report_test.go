package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
)

var classX = model.ClassSection{
	ID: "x", Grade: "MYP 1", Section: "A",
	Students: []model.Student{{ID: "A", Name: "ALPHA", RollNumber: 1}, {ID: "B", Name: "BRAVO", RollNumber: 2}, {ID: "C", Name: "CHARLIE", RollNumber: 3}},
}

func at(y int, m time.Month, d, h int) int64 {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC).UnixMilli()
}

func r(id string, s model.Status, reason string) model.StudentAttendanceRecord {
	return model.StudentAttendanceRecord{StudentID: id, Status: s, Reason: reason}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{0, 7, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.whole), "%d/%d", tt.part, tt.whole)
	}
}

func TestTotalsAndByClass(t *testing.T) {
	logs := []model.ClassAttendanceLog{
		{ClassID: "x", Records: []model.StudentAttendanceRecord{r("A", model.StatusPresent, ""), r("B", model.StatusPresent, ""), r("C", model.StatusLate, "bus")}},
		{ClassID: "deleted", Records: []model.StudentAttendanceRecord{r("Z", model.StatusAbsent, "sick")}},
		{ClassID: "x", Session: model.SessionEvening, Records: []model.StudentAttendanceRecord{r("A", model.StatusAbsent, "left")}},
	}
	assert.Equal(t, Counts{Present: 2, Absent: 2, Late: 1}, Totals(logs))

	got := ByClass(logs, []model.ClassSection{classX})
	require.Len(t, got, 2)
	assert.Equal(t, ClassBreakdown{ClassID: "x", Label: "MYP 1-A", Counts: Counts{Present: 2, Absent: 1, Late: 1}}, got[0])
	assert.Equal(t, ClassBreakdown{ClassID: "deleted", Label: "deleted", Counts: Counts{Absent: 1}}, got[1])

	assert.Empty(t, ByClass(nil, nil))
	assert.Equal(t, Counts{}, Totals(nil))
}

func TestCompleteness(t *testing.T) {
	classes := []model.ClassSection{classX, {ID: "y"}, {ID: "z"}}
	locked := model.Settings{IsMorningLocked: true}
	open := model.Settings{IsMorningLocked: false}

	assert.Equal(t, 3, ExpectedSubmissions(classes, locked))
	assert.Equal(t, 6, ExpectedSubmissions(classes, open))

	logs := make([]model.ClassAttendanceLog, 2)
	assert.Equal(t, Completeness{Submitted: 2, Expected: 6, Percent: 33}, CompletenessOf(logs, 6))
	assert.Equal(t, Completeness{Submitted: 2, Expected: 0, Percent: 0}, CompletenessOf(logs, 0))
	assert.Equal(t, 100, CompletenessOf(make([]model.ClassAttendanceLog, 9), 6).Percent)
}

func TestStudentYearReport(t *testing.T) {
	cal := calendar.New(time.UTC)
	logs := []model.ClassAttendanceLog{
		{ClassID: "x", Session: model.SessionMorning, TeacherName: "T1", Timestamp: at(2024, 1, 10, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusAbsent, "sick")}},
		{ClassID: "x", Session: model.SessionEvening, TeacherName: "T2", Timestamp: at(2024, 3, 5, 18), Records: []model.StudentAttendanceRecord{r("A", model.StatusLate, "")}},
		{ClassID: "x", Session: model.SessionMorning, TeacherName: "T1", Timestamp: at(2024, 3, 6, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusPresent, "")}},
		{ClassID: "x", Session: model.SessionMorning, TeacherName: "T1", Timestamp: at(2024, 3, 7, 8), Records: []model.StudentAttendanceRecord{r("B", model.StatusAbsent, "x")}},
		{ClassID: "x", Session: model.SessionMorning, TeacherName: "T1", Timestamp: at(2023, 12, 30, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusAbsent, "old")}},
	}
	incidents := []model.DisciplinaryRecord{
		{ID: "d2", StudentID: "A", Timestamp: at(2024, 4, 1, 9), EscalatedToHOS: true},
		{ID: "d1", StudentID: "A", Timestamp: at(2024, 2, 1, 9)},
	}

	rep := StudentYearReport(cal, logs, incidents, "A", 2024)
	assert.Equal(t, Counts{Present: 1, Absent: 1, Late: 1}, rep.Counts)
	assert.Equal(t, 3, rep.Sessions)
	assert.Equal(t, 33, rep.Percentage)
	require.Len(t, rep.History, 2)
	assert.Equal(t, Anomaly{Date: "2024-03-05", Timestamp: at(2024, 3, 5, 18), Session: model.SessionEvening, Status: model.StatusLate, TeacherName: "T2"}, rep.History[0])
	assert.Equal(t, "2024-01-10", rep.History[1].Date)
	require.Len(t, rep.Disciplinary, 2)
	assert.Equal(t, "d2", rep.Disciplinary[0].ID)
	assert.Equal(t, "d1", rep.Disciplinary[1].ID)

	empty := StudentYearReport(cal, logs, nil, "nobody", 2024)
	assert.Equal(t, 0, empty.Percentage)
	assert.NotNil(t, empty.History)
	assert.NotNil(t, empty.Disciplinary)
}

func TestBuildMonthGrid(t *testing.T) {
	cal := calendar.New(time.UTC)
	logs := []model.ClassAttendanceLog{
		{ClassID: "x", Session: model.SessionMorning, Timestamp: at(2024, 2, 1, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusPresent, ""), r("B", model.StatusAbsent, "s")}},
		{ClassID: "x", Session: model.SessionEvening, Timestamp: at(2024, 2, 1, 18), Records: []model.StudentAttendanceRecord{r("A", model.StatusLate, "l")}},
		{ClassID: "x", Session: model.SessionMorning, Timestamp: at(2024, 2, 29, 8), Records: []model.StudentAttendanceRecord{r("C", model.StatusPresent, "")}},
		{ClassID: "y", Session: model.SessionMorning, Timestamp: at(2024, 2, 2, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusAbsent, "other class")}},
		{ClassID: "x", Session: model.SessionMorning, Timestamp: at(2024, 3, 1, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusAbsent, "next month")}},
	}

	g := BuildMonthGrid(cal, logs, classX, 2024, time.February)
	assert.Equal(t, 29, g.Days)
	assert.Equal(t, "MYP 1-A", g.Label)
	require.Len(t, g.Rows, 3)

	a := g.Rows[0]
	assert.Equal(t, "A", a.Student.ID)
	require.Len(t, a.Days, 29)
	assert.Equal(t, GridCell{Morning: model.StatusPresent, Evening: model.StatusLate}, a.Days[0])
	assert.Equal(t, GridCell{}, a.Days[1])
	assert.Equal(t, GridCell{}, a.Days[28])

	assert.Equal(t, GridCell{Morning: model.StatusAbsent}, g.Rows[1].Days[0])
	assert.Equal(t, GridCell{Morning: model.StatusPresent}, g.Rows[2].Days[28])
}

func TestSnapshotsAndIssues(t *testing.T) {
	classes := []model.ClassSection{classX, {ID: "y", Grade: "MYP 2", Section: "B", Students: []model.Student{{ID: "Q"}}}}
	logs := []model.ClassAttendanceLog{
		{ID: "m", ClassID: "x", Session: model.SessionMorning, TeacherName: "T1", Timestamp: at(2024, 5, 1, 8), Records: []model.StudentAttendanceRecord{r("A", model.StatusLate, ""), r("B", model.StatusPresent, ""), r("C", model.StatusPresent, "")}},
		{ID: "e", ClassID: "x", Session: model.SessionEvening, TeacherName: "T2", Timestamp: at(2024, 5, 1, 18), Records: []model.StudentAttendanceRecord{r("A", model.StatusPresent, ""), r("B", model.StatusAbsent, "sick"), r("ghost", model.StatusAbsent, "")}},
	}

	snaps := Snapshots(logs, classes)
	require.Len(t, snaps, 2)
	assert.Equal(t, ClassSnapshot{ClassID: "x", Label: "MYP 1-A", Strength: 3, Present: 1, Absent: 2, Percentage: 33, HasData: true, Session: model.SessionEvening, TeacherName: "T2"}, snaps[0])
	assert.Equal(t, ClassSnapshot{ClassID: "y", Label: "MYP 2-B", Strength: 1}, snaps[1])

	escalated := []model.DisciplinaryRecord{{ID: "d1", StudentName: "ALPHA", ClassName: "MYP 1 - A", ReportedBy: "T1", Description: "fight", EscalatedToHOS: true}}
	issues := Issues(logs, classes, escalated)
	require.Len(t, issues, 4)
	assert.Equal(t, IssueDisciplinary, issues[0].Kind)
	assert.Equal(t, "Reported", issues[0].Session)
	assert.Equal(t, Issue{ID: "Be", Kind: IssueAbsent, StudentName: "BRAVO", ClassName: "MYP 1-A", Reason: "sick", Teacher: "T2", Session: "Evening", Timestamp: at(2024, 5, 1, 18)}, issues[1])
	assert.Equal(t, "Unknown", issues[2].StudentName)
	assert.Equal(t, "No reason provided", issues[2].Reason)
	assert.Equal(t, IssueLate, issues[3].Kind)
	assert.Equal(t, "No reason provided", issues[3].Reason)
}
