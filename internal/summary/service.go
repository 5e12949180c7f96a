package summary

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/calendar"
	"rollcall/internal/discipline"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/records"
)

// JobType tags summary jobs on the queue.
const JobType = "summary"

// Job asks the worker to (re)generate the summary for Day (YYYY-MM-DD).
type Job struct {
	Day string `json:"day"`
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service produces and caches the daily leadership summary.
type Service struct {
	att  *attendance.Service
	disc *discipline.Service
	recs *records.Store
	cal  *calendar.Calendar
	gen  Generator
	log  *zap.Logger
}

// NewService wires a summarizer.
func NewService(att *attendance.Service, disc *discipline.Service, recs *records.Store, cal *calendar.Calendar, gen Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{att: att, disc: disc, recs: recs, cal: cal, gen: gen, log: log}
}

// Generate builds the summary for day, caches it and returns it. Generator
// failures never surface; they yield FallbackText.
func (s *Service) Generate(ctx context.Context, day calendar.Day) (records.Summary, error) {
	logs, err := s.att.ForDay(ctx, day)
	if err != nil {
		return records.Summary{}, err
	}
	escalated, err := s.disc.EscalatedOn(ctx, day)
	if err != nil {
		return records.Summary{}, err
	}
	classes, err := s.recs.Classes(ctx)
	if err != nil {
		return records.Summary{}, err
	}

	text, source := s.text(ctx, logs, escalated, classes)
	metrics.Summaries.WithLabelValues(source).Inc()

	sum := records.Summary{Day: day.String(), Text: text, GeneratedAt: s.cal.Now().UTC().Truncate(time.Second)}
	if err := s.recs.SaveSummary(ctx, sum); err != nil {
		return records.Summary{}, err
	}
	s.log.Info("summary generated", zap.String("day", sum.Day), zap.String("source", source))
	return sum, nil
}

func (s *Service) text(ctx context.Context, logs []model.ClassAttendanceLog, escalated []model.DisciplinaryRecord, classes []model.ClassSection) (string, string) {
	prompt, calm := BuildPrompt(logs, escalated, classes)
	if calm {
		return CalmDayText, "calm"
	}
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn("summary generation failed", zap.Error(err))
		return FallbackText, "fallback"
	}
	if out == "" {
		return EmptyAnswerText, "empty"
	}
	return out, "model"
}

// Cached returns the stored summary for day, if any.
func (s *Service) Cached(ctx context.Context, day calendar.Day) (records.Summary, bool, error) {
	return s.recs.Summary(ctx, day.String())
}

// Enqueue schedules generation for day.
func (s *Service) Enqueue(ctx context.Context, q queue.Queue, day calendar.Day) error {
	msg, err := queue.NewMessage(JobType, Job{Day: day.String()})
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}

// Run consumes summary jobs until ctx ends.
func (s *Service) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	s.log.Info("summary worker started")
	for msg := range messages {
		if msg.Type != JobType {
			continue
		}
		var job Job
		if err := msg.Decode(&job); err != nil {
			s.log.Warn("bad summary job", zap.Error(err))
			continue
		}
		day, err := calendar.ParseDay(job.Day)
		if err != nil {
			s.log.Warn("bad summary job day", zap.String("day", job.Day), zap.Error(err))
			continue
		}
		if _, err := s.Generate(ctx, day); err != nil {
			s.log.Error("summary job failed", zap.String("day", job.Day), zap.Error(err))
		}
	}
	s.log.Info("summary worker stopped")
	return ctx.Err()
}
