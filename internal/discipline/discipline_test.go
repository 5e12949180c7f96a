package discipline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rollcall/internal/calendar"
	"rollcall/internal/model"
	"rollcall/internal/records"
	"rollcall/internal/store"
)

func newService(now *time.Time) *Service {
	recs := records.New(store.NewMemory(), zap.NewNop())
	cal := calendar.New(time.UTC).WithClock(func() time.Time { return *now })
	s := NewService(recs, cal, zap.NewNop())
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("inc-%d", n) }
	return s
}

func TestCreate(t *testing.T) {
	now := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	s := newService(&now)
	ctx := context.Background()

	rec, err := s.Create(ctx, Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "Mr. Iyer", Description: " phone in class "})
	require.NoError(t, err)
	assert.Equal(t, model.DisciplinaryRecord{
		ID:          "inc-1",
		StudentID:   "8304",
		StudentName: "GUTHI PRAGNYA",
		ClassID:     "myp1-a",
		ClassName:   "MYP 1 - A",
		ReportedBy:  "Mr. Iyer",
		Description: "phone in class",
		Timestamp:   now.UnixMilli(),
	}, rec)

	tests := []struct {
		name    string
		in      Report
		wantErr error
	}{
		{"missing description", Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "X", Description: "  "}, ErrInvalidReport},
		{"missing reporter", Report{ClassID: "myp1-a", StudentID: "8304", Description: "d"}, ErrInvalidReport},
		{"unknown class", Report{ClassID: "zz", StudentID: "8304", ReportedBy: "X", Description: "d"}, ErrUnknownClass},
		{"unknown student", Report{ClassID: "myp1-a", StudentID: "1", ReportedBy: "X", Description: "d"}, ErrUnknownStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEscalateIsMonotonic(t *testing.T) {
	now := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	s := newService(&now)
	ctx := context.Background()

	rec, err := s.Create(ctx, Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "X", Description: "d"})
	require.NoError(t, err)
	assert.False(t, rec.EscalatedToHOS)

	for i := 0; i < 2; i++ {
		got, err := s.Escalate(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, got.EscalatedToHOS)
	}
	all, _ := s.All(ctx)
	require.Len(t, all, 1)
	assert.True(t, all[0].EscalatedToHOS)

	_, err = s.Escalate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestViews(t *testing.T) {
	now := time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC)
	s := newService(&now)
	ctx := context.Background()

	old, err := s.Create(ctx, Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "A", Description: "last year"})
	require.NoError(t, err)

	now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	first, err := s.Create(ctx, Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "A", Description: "one"})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	second, err := s.Create(ctx, Report{ClassID: "myp1-a", StudentID: "8304", ReportedBy: "B", Description: "two"})
	require.NoError(t, err)
	_, err = s.Escalate(ctx, second.ID)
	require.NoError(t, err)

	today, err := s.ForDay(ctx, calendar.Day{Year: 2024, Month: time.May, Day: 1})
	require.NoError(t, err)
	assert.Len(t, today, 2)

	esc, err := s.EscalatedOn(ctx, calendar.Day{Year: 2024, Month: time.May, Day: 1})
	require.NoError(t, err)
	require.Len(t, esc, 1)
	assert.Equal(t, second.ID, esc[0].ID)

	mine, err := s.ReportedByToday(ctx, "A")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	year, err := s.ForStudentYear(ctx, "8304", 2024)
	require.NoError(t, err)
	require.Len(t, year, 2)
	assert.Equal(t, second.ID, year[0].ID)
	assert.Equal(t, first.ID, year[1].ID)

	prev, err := s.ForStudentYear(ctx, "8304", 2023)
	require.NoError(t, err)
	require.Len(t, prev, 1)
	assert.Equal(t, old.ID, prev[0].ID)
}
