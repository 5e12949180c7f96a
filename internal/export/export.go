package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
	"rollcall/internal/report"
)

var (
	ErrBadBackup    = errors.New("backup file is not a valid snapshot")
	ErrGenerateXLSX = errors.New("failed to generate spreadsheet")
)

// ArchiveHeader is the first row of the full log archive.
var ArchiveHeader = []string{"Date", "Time", "Session", "Class", "Teacher", "Student Name", "Roll No", "Status", "Reason"}

// WriteArchiveCSV writes one row per (log, record) pair. Unknown classes keep
// their raw id, unknown students their id with a blank roll number.
func WriteArchiveCSV(w io.Writer, cal *calendar.Calendar, logs []model.ClassAttendanceLog, classes []model.ClassSection) error {
	byID := make(map[string]model.ClassSection, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ArchiveHeader); err != nil {
		return err
	}
	for _, l := range logs {
		cls, known := byID[l.ClassID]
		label := l.ClassID
		if known {
			label = cls.Label()
		}
		date := cal.OfMillis(l.Timestamp).String()
		clock := cal.FormatTime(l.Timestamp)
		for _, r := range l.Records {
			name, roll := r.StudentID, ""
			if st, ok := cls.Student(r.StudentID); known && ok {
				name, roll = st.Name, strconv.Itoa(st.RollNumber)
			}
			row := []string{date, clock, string(l.Session), label, l.TeacherName, name, roll, string(r.Status), r.Reason}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ArchiveFilename names the archive download for day.
func ArchiveFilename(day calendar.Day) string {
	return "attendance_archive_" + day.String() + ".csv"
}

// BackupFilename names the JSON backup download for day.
func BackupFilename(day calendar.Day) string {
	return "system_backup_" + day.String() + ".json"
}

func monthGridHeader(days int) []string {
	h := make([]string, 0, 2+2*days)
	h = append(h, "Student Name", "Roll Number")
	for d := 1; d <= days; d++ {
		h = append(h, fmt.Sprintf("%d-Morning", d), fmt.Sprintf("%d-Evening", d))
	}
	return h
}

func monthGridRow(row report.GridRow) []string {
	out := make([]string, 0, 2+2*len(row.Days))
	out = append(out, row.Student.Name, strconv.Itoa(row.Student.RollNumber))
	for _, c := range row.Days {
		out = append(out, c.Morning.Letter(), c.Evening.Letter())
	}
	return out
}

// WriteMonthGridCSV writes the grid with P/A/L cells and "-" for no record.
func WriteMonthGridCSV(w io.Writer, g report.MonthGrid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(monthGridHeader(g.Days)); err != nil {
		return err
	}
	for _, row := range g.Rows {
		if err := cw.Write(monthGridRow(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MonthGridFilename names a month grid download with the given extension.
func MonthGridFilename(g report.MonthGrid, ext string) string {
	label := strings.NewReplacer(" ", "_", "-", "_").Replace(g.Label)
	return fmt.Sprintf("Attendance_%s_%d_%d.%s", label, int(g.Month), g.Year, ext)
}

// MonthGridXLSX renders the grid as a single-sheet workbook.
func MonthGridXLSX(g report.MonthGrid) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := g.Label
	if sheet == "" {
		sheet = g.ClassID
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, "", xlsxErr(err)
	}
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, "", xlsxErr(err)
		}
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, "", xlsxErr(err)
	}
	f.SetActiveSheet(idx)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", xlsxErr(err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 32); err != nil {
		return nil, "", xlsxErr(err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 12); err != nil {
		return nil, "", xlsxErr(err)
	}

	for i, h := range monthGridHeader(g.Days) {
		if err := f.SetCellValue(sheet, cell(i, 1), h); err != nil {
			return nil, "", xlsxErr(err)
		}
	}
	if err := f.SetCellStyle(sheet, cell(0, 1), cell(1+2*g.Days, 1), headerStyle); err != nil {
		return nil, "", xlsxErr(err)
	}

	for r, row := range g.Rows {
		for i, v := range monthGridRow(row) {
			var val any = v
			if i == 1 {
				val = row.Student.RollNumber
			}
			if err := f.SetCellValue(sheet, cell(i, r+2), val); err != nil {
				return nil, "", xlsxErr(err)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", xlsxErr(err)
	}
	return buf, MonthGridFilename(g, "xlsx"), nil
}

func xlsxErr(err error) error {
	return fmt.Errorf("%w: %v", ErrGenerateXLSX, err)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}

// WriteBackup writes snap as indented JSON.
func WriteBackup(w io.Writer, snap model.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadBackup parses a backup document. Unknown fields are ignored and
// missing collections stay nil.
func ReadBackup(r io.Reader) (model.Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if _, ok := raw["logs"]; !ok {
		return model.Snapshot{}, fmt.Errorf("%w: missing logs", ErrBadBackup)
	}
	var snap model.Snapshot
	b, _ := json.Marshal(raw)
	if err := json.Unmarshal(b, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	return snap, nil
}
