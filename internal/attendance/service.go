package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rollcall/internal/calendar"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/records"
)

var (
	ErrUnknownClass  = errors.New("unknown class")
	ErrSessionLocked = errors.New("session is locked")
	ErrMissingReason = errors.New("please provide a reason for all late or absent students")
	ErrInvalidInput  = errors.New("invalid attendance submission")
)

// Submission is a teacher's attendance sheet before it becomes a log.
type Submission struct {
	ClassID     string                          `json:"classId"`
	Session     model.Session                   `json:"session"`
	TeacherName string                          `json:"teacherName"`
	Records     []model.StudentAttendanceRecord `json:"records"`
}

// Form is the pre-populated sheet shown to a teacher for one class and session.
type Form struct {
	Class       model.ClassSection              `json:"class"`
	Session     model.Session                   `json:"session"`
	EditMode    bool                            `json:"editMode"`
	TeacherName string                          `json:"teacherName,omitempty"`
	Records     []model.StudentAttendanceRecord `json:"records"`
}

// Service coordinates attendance submissions and reconciliation.
type Service struct {
	repo  *Repository
	recs  *records.Store
	cal   *calendar.Calendar
	log   *zap.Logger
	newID func() string
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, recs *records.Store, cal *calendar.Calendar, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, recs: recs, cal: cal, log: log, newID: uuid.NewString}
}

// Save reconciles log into the store: any prior log for the same class,
// session and day is removed and log is appended. Last write wins.
func (s *Service) Save(ctx context.Context, log model.ClassAttendanceLog) error {
	replaced, err := s.repo.Upsert(ctx, log)
	if err != nil {
		return err
	}
	outcome := "created"
	if replaced {
		outcome = "replaced"
	}
	metrics.LogsSaved.WithLabelValues(string(log.Session), outcome).Inc()
	s.log.Info("attendance log saved",
		zap.String("class_id", log.ClassID),
		zap.String("session", string(log.Session)),
		zap.String("day", s.cal.OfMillis(log.Timestamp).String()),
		zap.String("outcome", outcome),
	)
	return nil
}

// FindExisting returns today's log for (classID, session), or nil.
func (s *Service) FindExisting(ctx context.Context, classID string, session model.Session) (*model.ClassAttendanceLog, error) {
	today, err := s.repo.ForDay(ctx, s.cal.Today())
	if err != nil {
		return nil, err
	}
	for i := range today {
		if today[i].ClassID == classID && today[i].Session == session {
			return &today[i], nil
		}
	}
	return nil, nil
}

// Submit validates sub, stamps it with an id and the current time, and saves it.
func (s *Service) Submit(ctx context.Context, sub Submission) (model.ClassAttendanceLog, error) {
	var fields []model.FieldError
	if strings.TrimSpace(sub.TeacherName) == "" {
		fields = append(fields, model.FieldError{Field: "teacherName", Error: "required"})
	}
	if sub.Session != model.SessionMorning && sub.Session != model.SessionEvening {
		fields = append(fields, model.FieldError{Field: "session", Error: "must be Morning or Evening"})
	}
	if len(sub.Records) == 0 {
		fields = append(fields, model.FieldError{Field: "records", Error: "required"})
	}
	for _, r := range sub.Records {
		if !r.Status.Valid() {
			fields = append(fields, model.FieldError{Field: "records." + r.StudentID + ".status", Error: "unknown status"})
		}
	}
	if len(fields) > 0 {
		metrics.SubmissionsRejected.WithLabelValues("invalid").Inc()
		return model.ClassAttendanceLog{}, model.NewValidationError(ErrInvalidInput, fields...)
	}

	for _, r := range sub.Records {
		if r.Status != model.StatusPresent && strings.TrimSpace(r.Reason) == "" {
			fields = append(fields, model.FieldError{Field: "records." + r.StudentID + ".reason", Error: "required"})
		}
	}
	if len(fields) > 0 {
		metrics.SubmissionsRejected.WithLabelValues("missing_reason").Inc()
		return model.ClassAttendanceLog{}, model.NewValidationError(ErrMissingReason, fields...)
	}

	settings, err := s.recs.Settings(ctx)
	if err != nil {
		return model.ClassAttendanceLog{}, err
	}
	if sub.Session == model.SessionMorning && settings.IsMorningLocked {
		metrics.SubmissionsRejected.WithLabelValues("locked").Inc()
		return model.ClassAttendanceLog{}, ErrSessionLocked
	}

	cls, err := s.class(ctx, sub.ClassID)
	if err != nil {
		metrics.SubmissionsRejected.WithLabelValues("unknown_class").Inc()
		return model.ClassAttendanceLog{}, err
	}
	seen := make(map[string]bool, len(sub.Records))
	for _, r := range sub.Records {
		switch {
		case seen[r.StudentID]:
			fields = append(fields, model.FieldError{Field: "records." + r.StudentID + ".studentId", Error: "duplicate student"})
		case !hasStudent(cls, r.StudentID):
			fields = append(fields, model.FieldError{Field: "records." + r.StudentID + ".studentId", Error: "not on the class roster"})
		}
		seen[r.StudentID] = true
	}
	if len(fields) > 0 {
		metrics.SubmissionsRejected.WithLabelValues("invalid").Inc()
		return model.ClassAttendanceLog{}, model.NewValidationError(ErrInvalidInput, fields...)
	}

	recs := make([]model.StudentAttendanceRecord, len(sub.Records))
	for i, r := range sub.Records {
		recs[i] = r
		if r.Status == model.StatusPresent {
			recs[i].Reason = ""
		}
	}
	log := model.ClassAttendanceLog{
		ID:          s.newID(),
		ClassID:     sub.ClassID,
		Timestamp:   s.cal.Now().UnixMilli(),
		Session:     sub.Session,
		TeacherName: strings.TrimSpace(sub.TeacherName),
		Records:     recs,
	}
	if err := s.Save(ctx, log); err != nil {
		return model.ClassAttendanceLog{}, err
	}
	return log, nil
}

// Prepare builds the sheet for classID and session. When today's log exists
// its answers are loaded (edit mode); students added since then default to
// Present and students no longer on the roster are left out.
func (s *Service) Prepare(ctx context.Context, classID string, session model.Session) (Form, error) {
	cls, err := s.class(ctx, classID)
	if err != nil {
		return Form{}, err
	}
	existing, err := s.FindExisting(ctx, cls.ID, session)
	if err != nil {
		return Form{}, err
	}

	form := Form{Class: cls, Session: session, Records: make([]model.StudentAttendanceRecord, 0, len(cls.Students))}
	if existing != nil {
		form.EditMode = true
		form.TeacherName = existing.TeacherName
	}
	for _, st := range cls.Students {
		rec := model.StudentAttendanceRecord{StudentID: st.ID, Status: model.StatusPresent}
		if existing != nil {
			if prior, ok := existing.Record(st.ID); ok {
				rec = prior
			}
		}
		form.Records = append(form.Records, rec)
	}
	return form, nil
}

// ForDay returns the logs of one day.
func (s *Service) ForDay(ctx context.Context, day calendar.Day) ([]model.ClassAttendanceLog, error) {
	return s.repo.ForDay(ctx, day)
}

// ForMonth returns the logs of one month.
func (s *Service) ForMonth(ctx context.Context, year int, month time.Month) ([]model.ClassAttendanceLog, error) {
	return s.repo.ForMonth(ctx, year, month)
}

// ForYear returns the logs of one calendar year.
func (s *Service) ForYear(ctx context.Context, year int) ([]model.ClassAttendanceLog, error) {
	return s.repo.ForYear(ctx, year)
}

// All returns every log.
func (s *Service) All(ctx context.Context) ([]model.ClassAttendanceLog, error) {
	return s.repo.All(ctx)
}

// Restore loads a backup, keeping only the latest log of each
// (class, session, day) slot.
func (s *Service) Restore(ctx context.Context, snap model.Snapshot) error {
	dropped := 0
	err := s.recs.Restore(ctx, snap, func(logs []model.ClassAttendanceLog) []model.ClassAttendanceLog {
		out := Normalize(s.cal, logs)
		dropped = len(logs) - len(out)
		return out
	})
	if err != nil {
		return err
	}
	s.log.Info("backup restored",
		zap.Int("logs", len(snap.Logs)-dropped),
		zap.Int("superseded_logs", dropped),
		zap.Int("incidents", len(snap.Disciplinary)))
	return nil
}

func hasStudent(cls model.ClassSection, id string) bool {
	_, ok := cls.Student(id)
	return ok
}

func (s *Service) class(ctx context.Context, id string) (model.ClassSection, error) {
	classes, err := s.recs.Classes(ctx)
	if err != nil {
		return model.ClassSection{}, err
	}
	for _, c := range classes {
		if c.ID == id {
			return c, nil
		}
	}
	return model.ClassSection{}, ErrUnknownClass
}
