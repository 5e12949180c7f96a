package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/calendar"
	"rollcall/internal/discipline"
	"rollcall/internal/export"
	"rollcall/internal/model"
	"rollcall/internal/report"
	"rollcall/internal/roster"
	"rollcall/internal/timetable"
)

type accessRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	PIN      string `json:"pin" binding:"required"`
}

func (s *server) teacherAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("deviceId and pin are required"))
		return
	}
	tok, err := s.Gate.TeacherAccess(c.Request.Context(), req.DeviceID, req.PIN)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

// forgetDevice revokes the caller's device trust.
func (s *server) forgetDevice(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	if err := s.Gate.Forget(c.Request.Context(), claims.Subject); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) staffAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("deviceId and pin are required"))
		return
	}
	tok, err := s.Gate.StaffAccess(c.Request.Context(), req.DeviceID, req.PIN)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (s *server) sessionState(c *gin.Context) {
	set, err := s.Records.Settings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isMorningLocked": set.IsMorningLocked, "openSessions": set.OpenSessions()})
}

func (s *server) setMorningLock(c *gin.Context) {
	var req struct {
		Locked *bool `json:"locked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("locked is required"))
		return
	}
	set, err := s.Records.UpdateSettings(c.Request.Context(), func(cur model.Settings) (model.Settings, error) {
		cur.IsMorningLocked = *req.Locked
		return cur, nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info("morning session lock changed", zap.Bool("locked", set.IsMorningLocked))
	c.JSON(http.StatusOK, gin.H{"isMorningLocked": set.IsMorningLocked, "openSessions": set.OpenSessions()})
}

func (s *server) changePIN(c *gin.Context) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("pin is required"))
		return
	}
	if err := s.Gate.ChangeTeacherPIN(c.Request.Context(), req.PIN); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) listClasses(c *gin.Context) {
	classes, err := s.Roster.Classes(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (s *server) getClass(c *gin.Context) {
	cls, err := s.Roster.Class(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (s *server) resolveClass(c *gin.Context) {
	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("payload is required"))
		return
	}
	cls, err := s.Roster.Resolve(c.Request.Context(), req.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (s *server) addStudent(c *gin.Context) {
	var req roster.NewStudent
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("name and rollNumber are required"))
		return
	}
	st, err := s.Roster.AddStudent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *server) removeStudent(c *gin.Context) {
	if err := s.Roster.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) classQR(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := s.Roster.QRCode(c.Request.Context(), c.Param("id"), size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *server) attendanceForm(c *gin.Context) {
	session, err := model.ParseSession(c.Query("session"))
	if err != nil {
		s.fail(c, badRequest("session must be Morning or Evening"))
		return
	}
	form, err := s.Attendance.Prepare(c.Request.Context(), c.Param("id"), session)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *server) submitAttendance(c *gin.Context) {
	var sub attendance.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.fail(c, badRequest("invalid attendance payload"))
		return
	}
	log, err := s.Attendance.Submit(c.Request.Context(), sub)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

func (s *server) listAttendance(c *gin.Context) {
	day, err := s.dayParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.Attendance.ForDay(c.Request.Context(), day)
	if err != nil {
		s.fail(c, err)
		return
	}
	if logs == nil {
		logs = []model.ClassAttendanceLog{}
	}
	c.JSON(http.StatusOK, gin.H{"day": day.String(), "logs": logs})
}

func (s *server) reportIncident(c *gin.Context) {
	var req discipline.Report
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("invalid incident payload"))
		return
	}
	rec, err := s.Discipline.Create(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *server) myIncidents(c *gin.Context) {
	reporter := strings.TrimSpace(c.Query("reporter"))
	if reporter == "" {
		s.fail(c, badRequest("reporter is required"))
		return
	}
	recs, err := s.Discipline.ReportedByToday(c.Request.Context(), reporter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": recs})
}

func (s *server) listIncidents(c *gin.Context) {
	day, err := s.dayParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	recs, err := s.Discipline.ForDay(c.Request.Context(), day)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": day.String(), "incidents": recs})
}

func (s *server) escalateIncident(c *gin.Context) {
	rec, err := s.Discipline.Escalate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) coordinatorDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	day, err := s.dayParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.Attendance.ForDay(ctx, day)
	if err != nil {
		s.fail(c, err)
		return
	}
	classes, err := s.Records.Classes(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	settings, err := s.Records.Settings(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	incidents, err := s.Discipline.ForDay(ctx, day)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":          day.String(),
		"totals":       report.Totals(logs),
		"byClass":      report.ByClass(logs, classes),
		"completeness": report.CompletenessOf(logs, report.ExpectedSubmissions(classes, settings)),
		"incidents":    incidents,
	})
}

func (s *server) leadershipDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	day, err := s.dayParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.Attendance.ForDay(ctx, day)
	if err != nil {
		s.fail(c, err)
		return
	}
	classes, err := s.Records.Classes(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	escalated, err := s.Discipline.EscalatedOn(ctx, day)
	if err != nil {
		s.fail(c, err)
		return
	}
	issues := report.Issues(logs, classes, escalated)
	body := gin.H{
		"day":           day.String(),
		"classesActive": len(logs),
		"totals":        report.Totals(logs),
		"classes":       report.Snapshots(logs, classes),
		"issues":        issues,
		"attention":     len(issues),
	}
	if sum, ok, err := s.Summary.Cached(ctx, day); err == nil && ok {
		body["summary"] = sum
	}
	c.JSON(http.StatusOK, body)
}

func (s *server) getSummary(c *gin.Context) {
	day, err := calendar.ParseDay(c.Param("day"))
	if err != nil {
		s.fail(c, badRequest("day must be YYYY-MM-DD"))
		return
	}
	sum, ok, err := s.Summary.Cached(c.Request.Context(), day)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary yet"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *server) requestSummary(c *gin.Context) {
	day, err := calendar.ParseDay(c.Param("day"))
	if err != nil {
		s.fail(c, badRequest("day must be YYYY-MM-DD"))
		return
	}
	if err := s.Summary.Enqueue(c.Request.Context(), s.Queue, day); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"day": day.String(), "status": "queued"})
}

func (s *server) monthReport(c *gin.Context) {
	ctx := c.Request.Context()
	year, err := s.yearParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	month, err := s.monthParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	cls, err := s.Roster.Class(ctx, c.Query("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.Attendance.ForMonth(ctx, year, month)
	if err != nil {
		s.fail(c, err)
		return
	}
	grid := report.BuildMonthGrid(s.Calendar, logs, cls, year, month)

	switch c.DefaultQuery("format", "json") {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteMonthGridCSV(&buf, grid); err != nil {
			s.fail(c, err)
			return
		}
		attachment(c, export.MonthGridFilename(grid, "csv"))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		buf, name, err := export.MonthGridXLSX(grid)
		if err != nil {
			s.fail(c, err)
			return
		}
		attachment(c, name)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	case "json":
		c.JSON(http.StatusOK, grid)
	default:
		s.fail(c, badRequest("format must be json, csv or xlsx"))
	}
}

func (s *server) studentReport(c *gin.Context) {
	ctx := c.Request.Context()
	year, err := s.yearParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.Attendance.ForYear(ctx, year)
	if err != nil {
		s.fail(c, err)
		return
	}
	incidents, err := s.Discipline.ForStudentYear(ctx, c.Param("studentId"), year)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report.StudentYearReport(s.Calendar, logs, incidents, c.Param("studentId"), year))
}

func (s *server) exportArchive(c *gin.Context) {
	ctx := c.Request.Context()
	logs, err := s.Attendance.All(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	classes, err := s.Records.Classes(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteArchiveCSV(&buf, s.Calendar, logs, classes); err != nil {
		s.fail(c, err)
		return
	}
	attachment(c, export.ArchiveFilename(s.Calendar.Today()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *server) exportBackup(c *gin.Context) {
	snap, err := s.Records.Snapshot(c.Request.Context(), s.Calendar.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBackup(&buf, snap); err != nil {
		s.fail(c, err)
		return
	}
	attachment(c, export.BackupFilename(s.Calendar.Today()))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func (s *server) getTimetable(c *gin.Context) {
	data, ct, ok, err := s.Timetable.Image(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no timetable uploaded"})
		return
	}
	c.Data(http.StatusOK, ct, data)
}

// uploadBodyLimit leaves room for base64 inflation and form framing.
func uploadBodyLimit(maxImage int64) int64 {
	return maxImage/3*4 + 8<<10
}

func (s *server) uploadTimetable(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uploadBodyLimit(s.Timetable.MaxBytes()))
	var tooBig *http.MaxBytesError

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if errors.As(err, &tooBig) {
			s.fail(c, timetable.ErrTooLarge)
			return
		}
		if err != nil {
			s.fail(c, badRequest("file field required"))
			return
		}
		defer file.Close()
		res, err := s.Timetable.Upload(ctx, file)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	var body struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.As(err, &tooBig) {
			s.fail(c, timetable.ErrTooLarge)
			return
		}
		s.fail(c, badRequest(`provide {"data": "<base64 data URI>"} or a multipart file`))
		return
	}
	res, err := s.Timetable.UploadDataURI(ctx, body.Data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) factoryReset(c *gin.Context) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Confirm != "RESET" {
		s.fail(c, badRequest(`send {"confirm": "RESET"} to erase all data`))
		return
	}
	if err := s.Records.Reset(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	s.Log.Warn("factory reset performed", zap.String("device_id", claims.Subject))
	c.Status(http.StatusNoContent)
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
}
