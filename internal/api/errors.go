package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/calendar"
	"rollcall/internal/discipline"
	"rollcall/internal/export"
	"rollcall/internal/model"
	"rollcall/internal/roster"
	"rollcall/internal/timetable"
)

var errBadRequest = errors.New("bad request")

func (s *server) fail(c *gin.Context, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Err.Error(), "fields": verr.Fields})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrMissingDevice),
		errors.Is(err, timetable.ErrNotImage),
		errors.Is(err, timetable.ErrBadDataURI),
		errors.Is(err, export.ErrBadBackup):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidPIN):
		status = http.StatusUnauthorized
	case errors.Is(err, attendance.ErrUnknownClass),
		errors.Is(err, roster.ErrUnknownClass),
		errors.Is(err, roster.ErrUnknownStudent),
		errors.Is(err, discipline.ErrUnknownClass),
		errors.Is(err, discipline.ErrUnknownStudent),
		errors.Is(err, discipline.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrSessionLocked),
		errors.Is(err, roster.ErrDuplicateStudent):
		status = http.StatusConflict
	case errors.Is(err, timetable.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	}

	if status == http.StatusInternalServerError {
		s.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(msg string) error {
	return &wrapped{msg: msg}
}

type wrapped struct{ msg string }

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return errBadRequest }

// dayParam reads ?day=YYYY-MM-DD, defaulting to today.
func (s *server) dayParam(c *gin.Context) (calendar.Day, error) {
	v := c.Query("day")
	if v == "" {
		return s.Calendar.Today(), nil
	}
	d, err := calendar.ParseDay(v)
	if err != nil {
		return calendar.Day{}, badRequest("day must be YYYY-MM-DD")
	}
	return d, nil
}

func (s *server) yearParam(c *gin.Context) (int, error) {
	v := c.Query("year")
	if v == "" {
		return s.Calendar.Today().Year, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1970 || y > 9999 {
		return 0, badRequest("year must be a four-digit number")
	}
	return y, nil
}

func (s *server) monthParam(c *gin.Context) (time.Month, error) {
	v := c.Query("month")
	if v == "" {
		return s.Calendar.Today().Month, nil
	}
	m, err := strconv.Atoi(v)
	if err != nil || m < 1 || m > 12 {
		return 0, badRequest("month must be 1-12")
	}
	return time.Month(m), nil
}
