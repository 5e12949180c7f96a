package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/records"
)

var (
	ErrInvalidPIN    = errors.New("incorrect PIN")
	ErrPINFormat     = errors.New("PIN must be exactly 4 digits")
	ErrMissingDevice = errors.New("device id required")
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// GateConfig holds the static parts of the PIN gates.
type GateConfig struct {
	StaffPIN   string
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Gate checks the shared PINs and issues trust tokens. It is a speed bump,
// not an identity system: tokens name a device, never a person.
type Gate struct {
	recs *records.Store
	cfg  GateConfig
	now  func() time.Time
	log  *zap.Logger
}

// NewGate creates a gate.
func NewGate(recs *records.Store, cfg GateConfig, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{recs: recs, cfg: cfg, now: time.Now, log: log}
}

func pinMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// TeacherAccess checks pin against the stored teacher PIN, marks deviceID as
// trusted and returns a teacher token.
func (g *Gate) TeacherAccess(ctx context.Context, deviceID, pin string) (TrustToken, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return TrustToken{}, ErrMissingDevice
	}
	settings, err := g.recs.Settings(ctx)
	if err != nil {
		return TrustToken{}, err
	}
	if !pinMatches(pin, settings.TeacherAccessPIN) {
		metrics.PINAttempts.WithLabelValues(RoleTeacher, "denied").Inc()
		g.log.Warn("teacher pin rejected", zap.String("device_id", deviceID))
		return TrustToken{}, ErrInvalidPIN
	}
	if err := g.recs.SetDeviceTrust(ctx, deviceID, true); err != nil {
		return TrustToken{}, err
	}
	metrics.PINAttempts.WithLabelValues(RoleTeacher, "granted").Inc()
	return Issue(deviceID, RoleTeacher, g.cfg.Issuer, g.cfg.SigningKey, g.cfg.TTL, g.now())
}

// StaffAccess checks pin against the configured staff PIN.
func (g *Gate) StaffAccess(ctx context.Context, deviceID, pin string) (TrustToken, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return TrustToken{}, ErrMissingDevice
	}
	if !pinMatches(pin, g.cfg.StaffPIN) {
		metrics.PINAttempts.WithLabelValues(RoleStaff, "denied").Inc()
		g.log.Warn("staff pin rejected", zap.String("device_id", deviceID))
		return TrustToken{}, ErrInvalidPIN
	}
	metrics.PINAttempts.WithLabelValues(RoleStaff, "granted").Inc()
	return Issue(deviceID, RoleStaff, g.cfg.Issuer, g.cfg.SigningKey, g.cfg.TTL, g.now())
}

// DeviceTrusted reports whether deviceID has passed the teacher gate.
func (g *Gate) DeviceTrusted(ctx context.Context, deviceID string) (bool, error) {
	return g.recs.DeviceTrusted(ctx, deviceID)
}

// Forget drops the device's trust; its teacher tokens stop working.
func (g *Gate) Forget(ctx context.Context, deviceID string) error {
	return g.recs.SetDeviceTrust(ctx, deviceID, false)
}

// ChangeTeacherPIN replaces the teacher PIN. Anything other than four digits
// is rejected and the old PIN stays.
func (g *Gate) ChangeTeacherPIN(ctx context.Context, pin string) error {
	if !pinPattern.MatchString(pin) {
		return model.NewValidationError(ErrPINFormat, model.FieldError{Field: "teacherAccessPin", Error: "4 digits"})
	}
	_, err := g.recs.UpdateSettings(ctx, func(s model.Settings) (model.Settings, error) {
		s.TeacherAccessPIN = pin
		return s, nil
	})
	if err == nil {
		g.log.Info("teacher pin changed")
	}
	return err
}

// Verify parses a bearer token. Teacher tokens are only honoured while the
// device is still trusted.
func (g *Gate) Verify(ctx context.Context, token string) (Claims, error) {
	claims, err := Parse(token, g.cfg.SigningKey, g.cfg.Issuer)
	if err != nil {
		return Claims{}, err
	}
	if claims.Role == RoleTeacher {
		ok, err := g.DeviceTrusted(ctx, claims.Subject)
		if err != nil {
			return Claims{}, err
		}
		if !ok {
			return Claims{}, errors.New("device no longer trusted")
		}
	}
	return claims, nil
}
