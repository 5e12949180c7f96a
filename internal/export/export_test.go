package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
	"rollcall/internal/report"
)

var class = model.ClassSection{
	ID: "myp1-a", Grade: "MYP 1", Section: "A",
	Students: []model.Student{{ID: "8304", Name: "GUTHI PRAGNYA", RollNumber: 8304}, {ID: "8181", Name: "V KRISHIYEAH", RollNumber: 8181}},
}

func TestArchiveEscapesQuotes(t *testing.T) {
	cal := calendar.New(time.UTC)
	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC).UnixMilli()
	logs := []model.ClassAttendanceLog{{
		ClassID: "myp1-a", Session: model.SessionMorning, TeacherName: "Ms. Rao", Timestamp: ts,
		Records: []model.StudentAttendanceRecord{{StudentID: "8304", Status: model.StatusLate, Reason: `said "sorry"`}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteArchiveCSV(&buf, cal, logs, []model.ClassSection{class}))
	assert.Equal(t,
		"Date,Time,Session,Class,Teacher,Student Name,Roll No,Status,Reason\n"+
			`2024-05-01,08:30:00,Morning,MYP 1-A,Ms. Rao,GUTHI PRAGNYA,8304,Late,"said ""sorry"""`+"\n",
		buf.String())
}

func TestArchiveRoundTrip(t *testing.T) {
	cal := calendar.New(time.UTC)
	ts := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC).UnixMilli()
	records := []model.StudentAttendanceRecord{
		{StudentID: "8304", Status: model.StatusPresent},
		{StudentID: "8181", Status: model.StatusAbsent, Reason: "fever, \"high\"\nsent home"},
		{StudentID: "9999", Status: model.StatusLate, Reason: "bus"},
	}
	logs := []model.ClassAttendanceLog{
		{ClassID: "myp1-a", Session: model.SessionEvening, TeacherName: "T", Timestamp: ts, Records: records},
		{ClassID: "gone", Session: model.SessionEvening, TeacherName: "T", Timestamp: ts, Records: []model.StudentAttendanceRecord{{StudentID: "1", Status: model.StatusPresent}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteArchiveCSV(&buf, cal, logs, []model.ClassSection{class}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, want := range records {
		row := rows[i+1]
		assert.Equal(t, string(want.Status), row[7])
		assert.Equal(t, want.Reason, row[8])
	}
	assert.Equal(t, "9999", rows[3][5], "unknown student falls back to id")
	assert.Equal(t, "", rows[3][6])
	assert.Equal(t, "gone", rows[4][3], "unknown class keeps raw id")
}

func TestArchiveEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArchiveCSV(&buf, calendar.New(time.UTC), nil, nil))
	assert.Equal(t, strings.Join(ArchiveHeader, ",")+"\n", buf.String())
}

func sampleGrid() report.MonthGrid {
	cal := calendar.New(time.UTC)
	logs := []model.ClassAttendanceLog{
		{ClassID: "myp1-a", Session: model.SessionMorning, Timestamp: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC).UnixMilli(),
			Records: []model.StudentAttendanceRecord{{StudentID: "8304", Status: model.StatusPresent}, {StudentID: "8181", Status: model.StatusAbsent, Reason: "x"}}},
		{ClassID: "myp1-a", Session: model.SessionEvening, Timestamp: time.Date(2024, 2, 2, 18, 0, 0, 0, time.UTC).UnixMilli(),
			Records: []model.StudentAttendanceRecord{{StudentID: "8304", Status: model.StatusLate, Reason: "y"}}},
	}
	return report.BuildMonthGrid(cal, logs, class, 2024, time.February)
}

func TestMonthGridCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonthGridCSV(&buf, sampleGrid()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 2+2*29)
	assert.Equal(t, []string{"Student Name", "Roll Number", "1-Morning", "1-Evening", "2-Morning", "2-Evening"}, rows[0][:6])
	assert.Equal(t, "29-Evening", rows[0][len(rows[0])-1])
	assert.Equal(t, []string{"GUTHI PRAGNYA", "8304", "P", "-", "-", "L", "-"}, rows[1][:7])
	assert.Equal(t, []string{"V KRISHIYEAH", "8181", "A", "-", "-", "-"}, rows[2][:6])
}

func TestMonthGridXLSX(t *testing.T) {
	g := sampleGrid()
	buf, name, err := MonthGridXLSX(g)
	require.NoError(t, err)
	assert.Equal(t, "Attendance_MYP_1_A_2_2024.xlsx", name)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("MYP 1-A", "A2")
	require.NoError(t, err)
	assert.Equal(t, "GUTHI PRAGNYA", v)
	v, _ = f.GetCellValue("MYP 1-A", "C2")
	assert.Equal(t, "P", v)
	v, _ = f.GetCellValue("MYP 1-A", "F2")
	assert.Equal(t, "L", v)
	v, _ = f.GetCellValue("MYP 1-A", "B3")
	assert.Equal(t, "8181", v)
}

func TestMonthGridXLSXBadSheetName(t *testing.T) {
	g := sampleGrid()
	g.Label = "MYP 1/A: [draft]"
	_, _, err := MonthGridXLSX(g)
	assert.ErrorIs(t, err, ErrGenerateXLSX)
}

func TestBackupRoundTrip(t *testing.T) {
	snap := model.Snapshot{
		Logs:         []model.ClassAttendanceLog{{ID: "l1", ClassID: "myp1-a", Session: model.SessionMorning, Timestamp: 1714550400000, Records: []model.StudentAttendanceRecord{{StudentID: "8304", Status: model.StatusAbsent, Reason: `a "b"`}}}},
		Disciplinary: []model.DisciplinaryRecord{{ID: "d1", EscalatedToHOS: true}},
		Classes:      []model.ClassSection{class},
		Settings:     model.DefaultSettings(),
		Timestamp:    "2024-05-01T10:00:00.000Z",
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, snap))
	assert.Contains(t, buf.String(), `"teacherAccessPin": "8899"`)

	got, err := ReadBackup(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestReadBackupRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "[]", "{", `{"classes":[]}`, `{"logs":"nope"}`} {
		_, err := ReadBackup(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrBadBackup, in)
	}

	snap, err := ReadBackup(strings.NewReader(`{"logs":[],"extra":1}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Logs)
	assert.Nil(t, snap.Classes)
}
