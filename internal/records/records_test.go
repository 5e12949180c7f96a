package records

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rollcall/internal/model"
	"rollcall/internal/store"
)

func newTestStore() (*Store, *store.Memory) {
	kv := store.NewMemory()
	return New(kv, zap.NewNop()), kv
}

func TestClassesSeededOnFirstRead(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()

	classes, err := s.Classes(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 9)
	assert.Equal(t, "myp1-a", classes[0].ID)
	assert.Equal(t, "MYP 1-A", classes[0].Label())

	raw, err := kv.Get(ctx, KeyClasses)
	require.NoError(t, err)
	assert.Contains(t, raw, "GUTHI PRAGNYA")
}

func TestCorruptCollectionsFallBack(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, KeyLogs, "{not json"))
	require.NoError(t, kv.Set(ctx, KeyDisciplinary, "[1,2"))
	require.NoError(t, kv.Set(ctx, KeyClasses, "oops"))
	require.NoError(t, kv.Set(ctx, KeySettings, "??"))

	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)

	disc, err := s.Disciplinary(ctx)
	require.NoError(t, err)
	assert.Empty(t, disc)

	classes, err := s.Classes(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 9)

	set, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), set)
}

func TestSettingsDefaultsMissingPIN(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()

	set, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, set.IsMorningLocked)
	assert.Equal(t, "8899", set.TeacherAccessPIN)

	require.NoError(t, kv.Set(ctx, KeySettings, `{"isMorningLocked":false}`))
	set, err = s.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, set.IsMorningLocked)
	assert.Equal(t, "8899", set.TeacherAccessPIN)
}

func TestDeviceTrust(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	ok, err := s.DeviceTrusted(ctx, "tab-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetDeviceTrust(ctx, "tab-1", true))
	ok, _ = s.DeviceTrusted(ctx, "tab-1")
	assert.True(t, ok)
	ok, _ = s.DeviceTrusted(ctx, "tab-2")
	assert.False(t, ok)

	require.NoError(t, s.SetDeviceTrust(ctx, "tab-1", false))
	ok, _ = s.DeviceTrusted(ctx, "tab-1")
	assert.False(t, ok)
}

func TestTimetableQuota(t *testing.T) {
	s := New(store.WithQuota(store.NewMemory(), 16), zap.NewNop())
	ctx := context.Background()

	_, ok, err := s.TimetableImage(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.SaveTimetableImage(ctx, "data:image/png;base64,AAAAAAAAAAAAAAAAAAAA")
	assert.ErrorIs(t, err, store.ErrQuotaExceeded)

	require.NoError(t, s.SaveTimetableImage(ctx, "data:,x"))
	v, ok, err := s.TimetableImage(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data:,x", v)
}

func TestResetClearsAndReseeds(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.UpdateLogs(ctx, func(l []model.ClassAttendanceLog) ([]model.ClassAttendanceLog, error) {
		return append(l, model.ClassAttendanceLog{ID: "1", ClassID: "myp1-a"}), nil
	}))
	require.NoError(t, s.UpdateClasses(ctx, func(c []model.ClassSection) ([]model.ClassSection, error) {
		return c[:1], nil
	}))
	require.NoError(t, s.SaveTimetableImage(ctx, "data:,x"))
	require.NoError(t, s.SetDeviceTrust(ctx, "tab", true))
	require.NoError(t, s.SaveSummary(ctx, Summary{Day: "2024-05-01", Text: "calm"}))

	require.NoError(t, s.Reset(ctx))

	logs, _ := s.Logs(ctx)
	assert.Empty(t, logs)
	classes, _ := s.Classes(ctx)
	assert.Len(t, classes, 9)
	_, err := kv.Get(ctx, KeyTimetable)
	assert.ErrorIs(t, err, store.ErrNotFound)
	ok, _ := s.DeviceTrusted(ctx, "tab")
	assert.False(t, ok)
	_, ok, _ = s.Summary(ctx, "2024-05-01")
	assert.False(t, ok)
}

func TestSnapshotRestore(t *testing.T) {
	src, _ := newTestStore()
	ctx := context.Background()
	require.NoError(t, src.UpdateDisciplinary(ctx, func(d []model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error) {
		return append(d, model.DisciplinaryRecord{ID: "d1", StudentID: "8304", EscalatedToHOS: true}), nil
	}))
	_, err := src.UpdateSettings(ctx, func(s model.Settings) (model.Settings, error) {
		s.TeacherAccessPIN = "4321"
		return s, nil
	})
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	snap, err := src.Snapshot(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", snap.Timestamp)
	assert.NotNil(t, snap.Logs)

	dst, _ := newTestStore()
	require.NoError(t, dst.Restore(ctx, snap, nil))
	got, err := dst.Snapshot(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestRestoreKeepsEscalation(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.UpdateDisciplinary(ctx, func(d []model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error) {
		return append(d,
			model.DisciplinaryRecord{ID: "d1", StudentID: "8304"},
			model.DisciplinaryRecord{ID: "d2", StudentID: "8181"},
		), nil
	}))
	older, err := s.Snapshot(ctx, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.UpdateDisciplinary(ctx, func(d []model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error) {
		d[0].EscalatedToHOS = true
		return d, nil
	}))

	require.NoError(t, s.Restore(ctx, older, nil))
	got, err := s.Disciplinary(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].EscalatedToHOS)
	assert.False(t, got[1].EscalatedToHOS)
	assert.False(t, older.Disciplinary[0].EscalatedToHOS, "backup value untouched")
}

func TestRestoreNormalizesLogs(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	snap := model.Snapshot{Logs: []model.ClassAttendanceLog{{ID: "a"}, {ID: "b"}}}

	require.NoError(t, s.Restore(ctx, snap, func(l []model.ClassAttendanceLog) []model.ClassAttendanceLog {
		return l[1:]
	}))
	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "b", logs[0].ID)

	require.NoError(t, s.Restore(ctx, snap, func([]model.ClassAttendanceLog) []model.ClassAttendanceLog { return nil }))
	logs, err = s.Logs(ctx)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestFirstReadDoesNotLoseRosterUpdate(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, _ := newTestStore()
		ctx := context.Background()

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Classes(ctx)
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.UpdateClasses(ctx, func(c []model.ClassSection) ([]model.ClassSection, error) {
				c[0].Students = append(c[0].Students, model.Student{ID: "9999", Name: "NEW", RollNumber: 9999})
				return c, nil
			})
		}()
		wg.Wait()

		classes, err := s.Classes(ctx)
		require.NoError(t, err)
		_, ok := classes[0].Student("9999")
		require.True(t, ok, "iteration %d lost the roster update", i)
	}
}
