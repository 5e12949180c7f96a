package timetable

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"rollcall/internal/cloudinary"
	"rollcall/internal/records"
	"rollcall/internal/store"
)

// Default upload limits. MaxPixels bounds the decoded bitmap, which is what
// costs memory, independently of the compressed size.
const (
	MaxUploadBytes = 10 << 20
	MaxPixels      = 40_000_000
)

var (
	ErrTooLarge   = errors.New("image is too large to save, please use a smaller image")
	ErrNotImage   = errors.New("file is not a supported image")
	ErrBadDataURI = errors.New("malformed data URI")
)

// Mirror stores a copy of the image outside the key space.
type Mirror interface {
	UploadBytes(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// Result describes a stored timetable.
type Result struct {
	DataURI   string `json:"-"`
	Bytes     int    `json:"bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	MirrorURL string `json:"mirrorUrl,omitempty"`
}

// Service handles the single timetable image.
type Service struct {
	recs     *records.Store
	mirror   Mirror
	maxWidth  int
	maxBytes  int64
	maxPixels int
	log       *zap.Logger
}

// NewService creates the service. mirror may be nil.
func NewService(recs *records.Store, mirror Mirror, maxWidth int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{recs: recs, mirror: mirror, maxWidth: maxWidth, maxBytes: MaxUploadBytes, maxPixels: MaxPixels, log: log}
}

// WithLimits overrides the upload size and pixel limits.
func (s *Service) WithLimits(maxBytes int64, maxPixels int) *Service {
	s.maxBytes, s.maxPixels = maxBytes, maxPixels
	return s
}

// MaxBytes is the largest encoded image Upload accepts.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload decodes an image, downscales it to the configured width, and stores
// it as a JPEG data URI. Input over the byte or pixel limit and a store quota
// failure are reported as ErrTooLarge and leave the previous image in place.
func (s *Service) Upload(ctx context.Context, r io.Reader) (Result, error) {
	raw, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Result{}, err
	}
	if int64(len(raw)) > s.maxBytes {
		s.log.Warn("timetable upload over byte limit", zap.Int64("limit", s.maxBytes))
		return Result{}, ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(s.maxPixels) {
		s.log.Warn("timetable upload over pixel limit", zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
		return Result{}, ErrTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return Result{}, fmt.Errorf("encode timetable: %w", err)
	}
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	if err := s.recs.SaveTimetableImage(ctx, uri); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			s.log.Warn("timetable rejected by quota", zap.Int("bytes", len(uri)))
			return Result{}, ErrTooLarge
		}
		return Result{}, err
	}

	res := Result{DataURI: uri, Bytes: len(uri), Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if s.mirror != nil {
		up, err := s.mirror.UploadBytes(ctx, buf.Bytes(), "timetable.jpg", "timetable")
		if err != nil {
			s.log.Warn("timetable mirror failed", zap.Error(err))
		} else {
			res.MirrorURL = up.SecureURL
		}
	}
	s.log.Info("timetable updated", zap.Int("bytes", res.Bytes), zap.Int("width", res.Width))
	return res, nil
}

// UploadDataURI accepts a base64 data URI as produced by a browser file reader.
func (s *Service) UploadDataURI(ctx context.Context, uri string) (Result, error) {
	_, data, err := ParseDataURI(uri)
	if err != nil {
		return Result{}, err
	}
	return s.Upload(ctx, bytes.NewReader(data))
}

// Image returns the stored timetable decoded for serving.
func (s *Service) Image(ctx context.Context) (data []byte, contentType string, ok bool, err error) {
	uri, ok, err := s.recs.TimetableImage(ctx)
	if err != nil || !ok {
		return nil, "", ok, err
	}
	ct, data, err := ParseDataURI(uri)
	if err != nil {
		return nil, "", false, err
	}
	return data, ct, true, nil
}

// ParseDataURI splits "data:<type>;base64,<payload>" into its content type and bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	ct, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return "", nil, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct, data, nil
}
