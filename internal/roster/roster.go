package roster

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"rollcall/internal/model"
	"rollcall/internal/records"
)

var (
	ErrUnknownClass     = errors.New("unknown class")
	ErrUnknownStudent   = errors.New("student not on roster")
	ErrDuplicateStudent = errors.New("a student with this roll number already exists in the class")
	ErrInvalidStudent   = errors.New("please enter both name and roll number")
)

// NewStudent is the input for adding a student to a class.
type NewStudent struct {
	Name       string `json:"name" validate:"required"`
	RollNumber int    `json:"rollNumber" validate:"required,gt=0"`
}

// Service manages class rosters.
type Service struct {
	recs     *records.Store
	log      *zap.Logger
	validate *validator.Validate
	baseURL  string
}

// NewService creates a roster service. baseURL is embedded in class QR codes.
func NewService(recs *records.Store, baseURL string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{recs: recs, log: log, validate: validator.New(), baseURL: strings.TrimRight(baseURL, "/")}
}

// Classes returns every class section.
func (s *Service) Classes(ctx context.Context) ([]model.ClassSection, error) {
	return s.recs.Classes(ctx)
}

// Class returns the class with id.
func (s *Service) Class(ctx context.Context, id string) (model.ClassSection, error) {
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

// AddStudent appends a student to classID and re-sorts the roster by roll
// number. The name is stored upper-cased and the id is the roll number.
func (s *Service) AddStudent(ctx context.Context, classID string, in NewStudent) (model.Student, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return model.Student{}, model.NewValidationError(ErrInvalidStudent, fieldErrors(err)...)
	}
	st := model.Student{
		ID:         strconv.Itoa(in.RollNumber),
		Name:       strings.ToUpper(in.Name),
		RollNumber: in.RollNumber,
	}

	err := s.recs.UpdateClasses(ctx, func(classes []model.ClassSection) ([]model.ClassSection, error) {
		for i := range classes {
			if classes[i].ID != classID {
				continue
			}
			if _, ok := classes[i].Student(st.ID); ok {
				return nil, ErrDuplicateStudent
			}
			students := append(classes[i].Students, st)
			sort.SliceStable(students, func(a, b int) bool { return students[a].RollNumber < students[b].RollNumber })
			classes[i].Students = students
			return classes, nil
		}
		return nil, ErrUnknownClass
	})
	if err != nil {
		return model.Student{}, err
	}
	s.log.Info("student added", zap.String("class_id", classID), zap.String("student_id", st.ID))
	return st, nil
}

// RemoveStudent drops studentID from classID. Historical logs keep their records.
func (s *Service) RemoveStudent(ctx context.Context, classID, studentID string) error {
	err := s.recs.UpdateClasses(ctx, func(classes []model.ClassSection) ([]model.ClassSection, error) {
		for i := range classes {
			if classes[i].ID != classID {
				continue
			}
			kept := classes[i].Students[:0:0]
			for _, st := range classes[i].Students {
				if st.ID != studentID {
					kept = append(kept, st)
				}
			}
			if len(kept) == len(classes[i].Students) {
				return nil, ErrUnknownStudent
			}
			classes[i].Students = kept
			return classes, nil
		}
		return nil, ErrUnknownClass
	})
	if err != nil {
		return err
	}
	s.log.Info("student removed", zap.String("class_id", classID), zap.String("student_id", studentID))
	return nil
}

// ClassIDFromPayload extracts a class id from a scanned QR payload: either a
// bare id or a URL carrying a classId query parameter.
func ClassIDFromPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if u, err := url.Parse(payload); err == nil && u.Scheme != "" && u.Host != "" {
		if id := u.Query().Get("classId"); id != "" {
			return id
		}
	}
	return payload
}

// Resolve maps a QR payload to a class, matching ids case-insensitively.
func (s *Service) Resolve(ctx context.Context, payload string) (model.ClassSection, error) {
	id := ClassIDFromPayload(payload)
	classes, err := s.recs.Classes(ctx)
	if err != nil {
		return model.ClassSection{}, err
	}
	for _, c := range classes {
		if strings.EqualFold(c.ID, id) {
			return c, nil
		}
	}
	return model.ClassSection{}, ErrUnknownClass
}

// QRPayload is the URL printed on a class card.
func (s *Service) QRPayload(classID string) string {
	return s.baseURL + "/?classId=" + url.QueryEscape(classID)
}

// QRCode renders the class card as a PNG of size pixels.
func (s *Service) QRCode(ctx context.Context, classID string, size int) ([]byte, error) {
	cls, err := s.Class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 300
	}
	png, err := qrcode.Encode(s.QRPayload(cls.ID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", cls.ID, err)
	}
	return png, nil
}

func fieldErrors(err error) []model.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldError{Field: lowerFirst(fe.Field()), Error: fe.Tag()})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
