package discipline

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rollcall/internal/calendar"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/records"
)

var (
	ErrNotFound       = errors.New("incident not found")
	ErrUnknownClass   = errors.New("unknown class")
	ErrUnknownStudent = errors.New("student not on roster")
	ErrInvalidReport  = errors.New("invalid incident report")
)

// Report is the input for a new incident.
type Report struct {
	ClassID     string `json:"classId" validate:"required"`
	StudentID   string `json:"studentId" validate:"required"`
	ReportedBy  string `json:"reportedBy" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Service records incidents and moves them from pending to escalated.
type Service struct {
	recs     *records.Store
	cal      *calendar.Calendar
	log      *zap.Logger
	validate *validator.Validate
	newID    func() string
}

// NewService creates a discipline service.
func NewService(recs *records.Store, cal *calendar.Calendar, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{recs: recs, cal: cal, log: log, validate: validator.New(), newID: uuid.NewString}
}

// Create stores a pending incident for a student on the current roster.
func (s *Service) Create(ctx context.Context, r Report) (model.DisciplinaryRecord, error) {
	r.ReportedBy = strings.TrimSpace(r.ReportedBy)
	r.Description = strings.TrimSpace(r.Description)
	if err := s.validate.Struct(r); err != nil {
		var fields []model.FieldError
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, model.FieldError{Field: fe.Field(), Error: fe.Tag()})
			}
		}
		return model.DisciplinaryRecord{}, model.NewValidationError(ErrInvalidReport, fields...)
	}

	classes, err := s.recs.Classes(ctx)
	if err != nil {
		return model.DisciplinaryRecord{}, err
	}
	var cls *model.ClassSection
	for i := range classes {
		if classes[i].ID == r.ClassID {
			cls = &classes[i]
			break
		}
	}
	if cls == nil {
		return model.DisciplinaryRecord{}, ErrUnknownClass
	}
	st, ok := cls.Student(r.StudentID)
	if !ok {
		return model.DisciplinaryRecord{}, ErrUnknownStudent
	}

	rec := model.DisciplinaryRecord{
		ID:          s.newID(),
		StudentID:   st.ID,
		StudentName: st.Name,
		ClassID:     cls.ID,
		ClassName:   cls.DisplayName(),
		ReportedBy:  r.ReportedBy,
		Description: r.Description,
		Timestamp:   s.cal.Now().UnixMilli(),
	}
	err = s.recs.UpdateDisciplinary(ctx, func(all []model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error) {
		return append(all, rec), nil
	})
	if err != nil {
		return model.DisciplinaryRecord{}, err
	}
	metrics.Incidents.WithLabelValues("reported").Inc()
	s.log.Info("incident reported", zap.String("id", rec.ID), zap.String("class_id", rec.ClassID))
	return rec, nil
}

// Escalate marks id as escalated to leadership. Escalating twice is a no-op;
// nothing ever clears the flag.
func (s *Service) Escalate(ctx context.Context, id string) (model.DisciplinaryRecord, error) {
	var out model.DisciplinaryRecord
	changed := false
	err := s.recs.UpdateDisciplinary(ctx, func(all []model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error) {
		for i := range all {
			if all[i].ID == id {
				if !all[i].EscalatedToHOS {
					all[i].EscalatedToHOS = true
					changed = true
				}
				out = all[i]
				return all, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return model.DisciplinaryRecord{}, err
	}
	if changed {
		metrics.Incidents.WithLabelValues("escalated").Inc()
		s.log.Info("incident escalated", zap.String("id", id))
	}
	return out, nil
}

// All returns every incident.
func (s *Service) All(ctx context.Context) ([]model.DisciplinaryRecord, error) {
	return s.recs.Disciplinary(ctx)
}

// ForDay returns incidents reported on day, escalated or not.
func (s *Service) ForDay(ctx context.Context, day calendar.Day) ([]model.DisciplinaryRecord, error) {
	return s.filter(ctx, func(r model.DisciplinaryRecord) bool { return s.cal.OfMillis(r.Timestamp) == day })
}

// EscalatedOn returns incidents reported on day that have been escalated.
func (s *Service) EscalatedOn(ctx context.Context, day calendar.Day) ([]model.DisciplinaryRecord, error) {
	return s.filter(ctx, func(r model.DisciplinaryRecord) bool {
		return r.EscalatedToHOS && s.cal.OfMillis(r.Timestamp) == day
	})
}

// ReportedByToday returns today's incidents filed by reporter.
func (s *Service) ReportedByToday(ctx context.Context, reporter string) ([]model.DisciplinaryRecord, error) {
	today := s.cal.Today()
	return s.filter(ctx, func(r model.DisciplinaryRecord) bool {
		return r.ReportedBy == reporter && s.cal.OfMillis(r.Timestamp) == today
	})
}

// ForStudentYear returns a student's incidents in year, newest first,
// regardless of escalation.
func (s *Service) ForStudentYear(ctx context.Context, studentID string, year int) ([]model.DisciplinaryRecord, error) {
	out, err := s.filter(ctx, func(r model.DisciplinaryRecord) bool {
		return r.StudentID == studentID && s.cal.OfMillis(r.Timestamp).Year == year
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (s *Service) filter(ctx context.Context, keep func(model.DisciplinaryRecord) bool) ([]model.DisciplinaryRecord, error) {
	all, err := s.recs.Disciplinary(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.DisciplinaryRecord{}
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
