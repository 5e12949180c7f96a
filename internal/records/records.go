package records

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/model"
	"rollcall/internal/store"
)

// Persisted keys. They match the browser build so backups stay interchangeable.
const (
	KeyLogs          = "myp_prep_attendance_logs"
	KeyDisciplinary  = "myp_disciplinary_logs"
	KeyClasses       = "myp_class_data_v1"
	KeySettings      = "myp_app_settings_v1"
	KeyTimetable     = "myp_prep_timetable_image_v1"
	KeyTrustedDevice = "myp_prep_device_trusted_v1"
	KeySummaries     = "myp_hos_summaries_v1"
)

var allKeys = []string{KeyLogs, KeyDisciplinary, KeyClasses, KeySettings, KeyTimetable, KeyTrustedDevice, KeySummaries}

//go:embed seed_classes.json
var seedClassesJSON []byte

// SeedClasses returns a fresh copy of the default roster.
func SeedClasses() []model.ClassSection {
	var out []model.ClassSection
	if err := json.Unmarshal(seedClassesJSON, &out); err != nil {
		panic(fmt.Sprintf("records: bad embedded seed: %v", err))
	}
	return out
}

// Summary is a cached leadership summary for one day.
type Summary struct {
	Day         string    `json:"day"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Store is the typed view over the key space. Collections are read and
// written whole; the mutex serializes read-modify-write cycles within one process.
type Store struct {
	kv  store.KV
	log *zap.Logger
	mu  sync.Mutex
}

// New wraps kv.
func New(kv store.KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// load decodes key into out. It reports false when the key is absent or holds
// unparseable JSON; the latter is logged and otherwise treated as absent.
func (s *Store) load(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn("discarding unparseable stored value", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Logs returns every attendance log.
func (s *Store) Logs(ctx context.Context) ([]model.ClassAttendanceLog, error) {
	var logs []model.ClassAttendanceLog
	if _, err := s.load(ctx, KeyLogs, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// UpdateLogs applies fn to the log collection and persists the result.
func (s *Store) UpdateLogs(ctx context.Context, fn func([]model.ClassAttendanceLog) ([]model.ClassAttendanceLog, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs, err := s.Logs(ctx)
	if err != nil {
		return err
	}
	next, err := fn(logs)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyLogs, next)
}

// Disciplinary returns every incident report.
func (s *Store) Disciplinary(ctx context.Context) ([]model.DisciplinaryRecord, error) {
	var recs []model.DisciplinaryRecord
	if _, err := s.load(ctx, KeyDisciplinary, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateDisciplinary applies fn to the incident collection and persists the result.
func (s *Store) UpdateDisciplinary(ctx context.Context, fn func([]model.DisciplinaryRecord) ([]model.DisciplinaryRecord, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.Disciplinary(ctx)
	if err != nil {
		return err
	}
	next, err := fn(recs)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyDisciplinary, next)
}

// Classes returns the roster, seeding the default list on first read. A
// corrupt stored roster yields the defaults without overwriting it.
func (s *Store) Classes(ctx context.Context) ([]model.ClassSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes(ctx)
}

// classes is Classes for callers already holding s.mu.
func (s *Store) classes(ctx context.Context) ([]model.ClassSection, error) {
	raw, err := s.kv.Get(ctx, KeyClasses)
	if errors.Is(err, store.ErrNotFound) {
		seed := SeedClasses()
		if err := s.save(ctx, KeyClasses, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyClasses, err)
	}
	var classes []model.ClassSection
	if err := json.Unmarshal([]byte(raw), &classes); err != nil {
		s.log.Warn("failed to parse class data, using defaults", zap.Error(err))
		return SeedClasses(), nil
	}
	return classes, nil
}

// UpdateClasses applies fn to the roster and persists the result.
func (s *Store) UpdateClasses(ctx context.Context, fn func([]model.ClassSection) ([]model.ClassSection, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	classes, err := s.classes(ctx)
	if err != nil {
		return err
	}
	next, err := fn(classes)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyClasses, next)
}

// Settings returns the settings singleton, defaulted when absent.
func (s *Store) Settings(ctx context.Context) (model.Settings, error) {
	set := model.DefaultSettings()
	ok, err := s.load(ctx, KeySettings, &set)
	if err != nil {
		return model.Settings{}, err
	}
	if !ok {
		return model.DefaultSettings(), nil
	}
	if set.TeacherAccessPIN == "" {
		set.TeacherAccessPIN = model.DefaultTeacherPIN
	}
	return set, nil
}

// UpdateSettings applies fn to the settings and persists the result.
func (s *Store) UpdateSettings(ctx context.Context, fn func(model.Settings) (model.Settings, error)) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.Settings(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return model.Settings{}, err
	}
	if err := s.save(ctx, KeySettings, next); err != nil {
		return model.Settings{}, err
	}
	return next, nil
}

// TimetableImage returns the stored data URI; ok is false when none is stored.
func (s *Store) TimetableImage(ctx context.Context) (dataURI string, ok bool, err error) {
	v, err := s.kv.Get(ctx, KeyTimetable)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SaveTimetableImage stores the raw data URI. It fails with
// store.ErrQuotaExceeded when the image does not fit.
func (s *Store) SaveTimetableImage(ctx context.Context, dataURI string) error {
	return s.kv.Set(ctx, KeyTimetable, dataURI)
}

// DeviceTrusted reports whether deviceID passed the teacher PIN gate.
func (s *Store) DeviceTrusted(ctx context.Context, deviceID string) (bool, error) {
	devices := map[string]string{}
	if _, err := s.load(ctx, KeyTrustedDevice, &devices); err != nil {
		return false, err
	}
	return devices[deviceID] == "true", nil
}

// SetDeviceTrust marks or unmarks deviceID as trusted.
func (s *Store) SetDeviceTrust(ctx context.Context, deviceID string, trusted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := map[string]string{}
	if _, err := s.load(ctx, KeyTrustedDevice, &devices); err != nil {
		return err
	}
	if trusted {
		devices[deviceID] = "true"
	} else {
		delete(devices, deviceID)
	}
	return s.save(ctx, KeyTrustedDevice, devices)
}

// Summary returns the cached summary for day.
func (s *Store) Summary(ctx context.Context, day string) (Summary, bool, error) {
	all := map[string]Summary{}
	if _, err := s.load(ctx, KeySummaries, &all); err != nil {
		return Summary{}, false, err
	}
	sum, ok := all[day]
	return sum, ok, nil
}

// SaveSummary caches sum under its day.
func (s *Store) SaveSummary(ctx context.Context, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := map[string]Summary{}
	if _, err := s.load(ctx, KeySummaries, &all); err != nil {
		return err
	}
	all[sum.Day] = sum
	return s.save(ctx, KeySummaries, all)
}

// Snapshot collects everything a backup carries.
func (s *Store) Snapshot(ctx context.Context, now time.Time) (model.Snapshot, error) {
	logs, err := s.Logs(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	disc, err := s.Disciplinary(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	classes, err := s.Classes(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	set, err := s.Settings(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if logs == nil {
		logs = []model.ClassAttendanceLog{}
	}
	if disc == nil {
		disc = []model.DisciplinaryRecord{}
	}
	return model.Snapshot{
		Logs:         logs,
		Disciplinary: disc,
		Classes:      classes,
		Settings:     set,
		Timestamp:    now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}, nil
}

// Restore overwrites the four collections with snap. When normalize is
// non-nil the backup's logs pass through it before being written. Incidents
// already escalated in the store stay escalated.
func (s *Store) Restore(ctx context.Context, snap model.Snapshot, normalize func([]model.ClassAttendanceLog) []model.ClassAttendanceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Classes == nil {
		snap.Classes = SeedClasses()
	}
	if snap.Settings.TeacherAccessPIN == "" {
		snap.Settings.TeacherAccessPIN = model.DefaultTeacherPIN
	}

	logs := nonNilLogs(snap.Logs)
	if normalize != nil {
		logs = nonNilLogs(normalize(logs))
	}

	current, err := s.Disciplinary(ctx)
	if err != nil {
		return err
	}
	escalated := make(map[string]bool, len(current))
	for _, d := range current {
		if d.EscalatedToHOS {
			escalated[d.ID] = true
		}
	}
	disc := make([]model.DisciplinaryRecord, len(snap.Disciplinary))
	copy(disc, snap.Disciplinary)
	for i := range disc {
		if escalated[disc[i].ID] && !disc[i].EscalatedToHOS {
			disc[i].EscalatedToHOS = true
			s.log.Info("kept escalation on restore", zap.String("incident_id", disc[i].ID))
		}
	}

	if err := s.save(ctx, KeyLogs, logs); err != nil {
		return err
	}
	if err := s.save(ctx, KeyDisciplinary, disc); err != nil {
		return err
	}
	if err := s.save(ctx, KeyClasses, snap.Classes); err != nil {
		return err
	}
	return s.save(ctx, KeySettings, snap.Settings)
}

// Reset clears every key and re-seeds the roster.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range allKeys {
		if err := s.kv.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	_, err := s.classes(ctx)
	return err
}

func nonNilLogs(l []model.ClassAttendanceLog) []model.ClassAttendanceLog {
	if l == nil {
		return []model.ClassAttendanceLog{}
	}
	return l
}
