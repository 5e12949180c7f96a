package attendance

import (
	"context"
	"slices"
	"sort"
	"time"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
	"rollcall/internal/records"
)

// Repository reads and writes attendance logs through the record store,
// bucketing them by calendar day.
type Repository struct {
	recs *records.Store
	cal  *calendar.Calendar
}

// NewRepository creates a repo.
func NewRepository(recs *records.Store, cal *calendar.Calendar) *Repository {
	return &Repository{recs: recs, cal: cal}
}

// sameSlot reports whether a and b share (class, session, day).
func sameSlot(cal *calendar.Calendar, a, b model.ClassAttendanceLog) bool {
	return a.ClassID == b.ClassID &&
		a.Session == b.Session &&
		cal.OfMillis(a.Timestamp) == cal.OfMillis(b.Timestamp)
}

// Reconcile drops every log sharing next's (class, session, day) and appends
// next. It reports whether anything was dropped.
func Reconcile(cal *calendar.Calendar, logs []model.ClassAttendanceLog, next model.ClassAttendanceLog) ([]model.ClassAttendanceLog, bool) {
	out := make([]model.ClassAttendanceLog, 0, len(logs)+1)
	replaced := false
	for _, l := range logs {
		if sameSlot(cal, l, next) {
			replaced = true
			continue
		}
		out = append(out, l)
	}
	return append(out, next), replaced
}

// Normalize folds logs through Reconcile oldest first, so each slot keeps
// only its latest log. The result is ordered by timestamp.
func Normalize(cal *calendar.Calendar, logs []model.ClassAttendanceLog) []model.ClassAttendanceLog {
	sorted := slices.Clone(logs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	out := make([]model.ClassAttendanceLog, 0, len(sorted))
	for _, l := range sorted {
		out, _ = Reconcile(cal, out, l)
	}
	return out
}

// Upsert stores log, replacing any prior log for the same slot.
func (r *Repository) Upsert(ctx context.Context, log model.ClassAttendanceLog) (bool, error) {
	var replaced bool
	err := r.recs.UpdateLogs(ctx, func(logs []model.ClassAttendanceLog) ([]model.ClassAttendanceLog, error) {
		var out []model.ClassAttendanceLog
		out, replaced = Reconcile(r.cal, logs, log)
		return out, nil
	})
	return replaced, err
}

// All returns every stored log.
func (r *Repository) All(ctx context.Context) ([]model.ClassAttendanceLog, error) {
	return r.recs.Logs(ctx)
}

func (r *Repository) filter(ctx context.Context, keep func(calendar.Day) bool) ([]model.ClassAttendanceLog, error) {
	logs, err := r.recs.Logs(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ClassAttendanceLog
	for _, l := range logs {
		if keep(r.cal.OfMillis(l.Timestamp)) {
			out = append(out, l)
		}
	}
	return out, nil
}

// ForDay returns logs whose timestamp falls on day.
func (r *Repository) ForDay(ctx context.Context, day calendar.Day) ([]model.ClassAttendanceLog, error) {
	return r.filter(ctx, func(d calendar.Day) bool { return d == day })
}

// ForMonth returns logs in the given month.
func (r *Repository) ForMonth(ctx context.Context, year int, month time.Month) ([]model.ClassAttendanceLog, error) {
	return r.filter(ctx, func(d calendar.Day) bool { return d.Year == year && d.Month == month })
}

// ForYear returns logs in the given calendar year.
func (r *Repository) ForYear(ctx context.Context, year int) ([]model.ClassAttendanceLog, error) {
	return r.filter(ctx, func(d calendar.Day) bool { return d.Year == year })
}
