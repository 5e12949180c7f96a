package model

import (
	"fmt"
	"time"
)

// Status is a per-student attendance mark.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Letter is the single-character form used by the month grid.
func (s Status) Letter() string {
	switch s {
	case StatusPresent:
		return "P"
	case StatusAbsent:
		return "A"
	case StatusLate:
		return "L"
	}
	return "-"
}

// Session is a named teaching slot within a day.
type Session string

const (
	SessionMorning Session = "Morning"
	SessionEvening Session = "Evening"
)

// Sessions lists every session in day order.
var Sessions = []Session{SessionMorning, SessionEvening}

// ParseSession accepts the canonical names case-insensitively.
func ParseSession(v string) (Session, error) {
	switch v {
	case "Morning", "morning", "MORNING":
		return SessionMorning, nil
	case "Evening", "evening", "EVENING":
		return SessionEvening, nil
	}
	return "", fmt.Errorf("unknown session %q", v)
}

// Student is a roster entry. ID is derived from the roll number.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber int    `json:"rollNumber"`
}

// ClassSection is a class with its current roster.
type ClassSection struct {
	ID       string    `json:"id"`
	Grade    string    `json:"grade"`
	Section  string    `json:"section"`
	Students []Student `json:"students"`
}

// Label is the compact form used in exports and charts, e.g. "MYP 1-A".
func (c ClassSection) Label() string {
	return c.Grade + "-" + c.Section
}

// DisplayName is the spaced form stored on incidents, e.g. "MYP 1 - A".
func (c ClassSection) DisplayName() string {
	return c.Grade + " - " + c.Section
}

// Student returns the roster entry with the given id.
func (c ClassSection) Student(id string) (Student, bool) {
	for _, s := range c.Students {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// StudentAttendanceRecord is one student's mark inside a log.
type StudentAttendanceRecord struct {
	StudentID string `json:"studentId"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// ClassAttendanceLog is one class's submission for one session on one day.
// Timestamp is Unix milliseconds.
type ClassAttendanceLog struct {
	ID          string                    `json:"id"`
	ClassID     string                    `json:"classId"`
	Timestamp   int64                     `json:"timestamp"`
	Session     Session                   `json:"session"`
	TeacherName string                    `json:"teacherName"`
	Records     []StudentAttendanceRecord `json:"records"`
}

// At converts the log timestamp to a time.Time.
func (l ClassAttendanceLog) At() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// Record returns the record for studentID if the log holds one.
func (l ClassAttendanceLog) Record(studentID string) (StudentAttendanceRecord, bool) {
	for _, r := range l.Records {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return StudentAttendanceRecord{}, false
}

// DisciplinaryRecord is an incident report. EscalatedToHOS only ever moves false -> true.
type DisciplinaryRecord struct {
	ID             string `json:"id"`
	StudentID      string `json:"studentId"`
	StudentName    string `json:"studentName"`
	ClassID        string `json:"classId"`
	ClassName      string `json:"className"`
	ReportedBy     string `json:"reportedBy"`
	Description    string `json:"description"`
	Timestamp      int64  `json:"timestamp"`
	EscalatedToHOS bool   `json:"escalatedToHOS"`
}

// At converts the incident timestamp to a time.Time.
func (r DisciplinaryRecord) At() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// DefaultTeacherPIN is used when settings are missing or carry no PIN.
const DefaultTeacherPIN = "8899"

// Settings is the persisted application settings singleton.
type Settings struct {
	IsMorningLocked  bool   `json:"isMorningLocked"`
	TeacherAccessPIN string `json:"teacherAccessPin"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{IsMorningLocked: true, TeacherAccessPIN: DefaultTeacherPIN}
}

// OpenSessions returns the sessions teachers may currently submit.
func (s Settings) OpenSessions() []Session {
	if s.IsMorningLocked {
		return []Session{SessionEvening}
	}
	return Sessions
}

// Snapshot is the full backup document. It carries no version tag.
type Snapshot struct {
	Logs         []ClassAttendanceLog `json:"logs"`
	Disciplinary []DisciplinaryRecord `json:"disciplinary"`
	Classes      []ClassSection       `json:"classes"`
	Settings     Settings             `json:"settings"`
	Timestamp    string               `json:"timestamp"`
}
