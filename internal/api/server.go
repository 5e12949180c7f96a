package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/calendar"
	"rollcall/internal/discipline"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/queue"
	"rollcall/internal/records"
	"rollcall/internal/roster"
	"rollcall/internal/summary"
	"rollcall/internal/timetable"
)

// Deps is everything the HTTP layer calls into.
type Deps struct {
	Records    *records.Store
	Calendar   *calendar.Calendar
	Attendance *attendance.Service
	Roster     *roster.Service
	Discipline *discipline.Service
	Summary    *summary.Service
	Queue      queue.Queue
	Timetable  *timetable.Service
	Gate       *auth.Gate
	Log        *zap.Logger

	// RateLimitPerMin applies to every route; PINAttemptsPerMin to the PIN gates.
	RateLimitPerMin   int
	PINAttemptsPerMin int
	AllowOrigins      []string

	// Health reports backend reachability for /healthz.
	Health func(ctx context.Context) map[string]bool
}

type server struct {
	Deps
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &server{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(d.Log, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(d.AllowOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).GinMiddleware("rate limit"))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")

	pinLimit := httpmiddleware.NewSimpleTokenBucket(d.PINAttemptsPerMin, d.PINAttemptsPerMin).GinMiddleware("too many PIN attempts, try again later")
	v1.POST("/access/teacher", pinLimit, s.teacherAccess)
	v1.POST("/access/staff", pinLimit, s.staffAccess)
	v1.GET("/settings/session", s.sessionState)

	v1.DELETE("/access/teacher", d.Gate.Require(auth.RoleTeacher), s.forgetDevice)

	anyone := v1.Group("", d.Gate.Require(auth.RoleTeacher, auth.RoleStaff))
	anyone.GET("/classes", s.listClasses)
	anyone.GET("/classes/:id", s.getClass)
	anyone.POST("/classes/resolve", s.resolveClass)
	anyone.GET("/classes/:id/attendance-form", s.attendanceForm)
	anyone.POST("/attendance", s.submitAttendance)
	anyone.POST("/incidents", s.reportIncident)
	anyone.GET("/incidents/mine", s.myIncidents)
	anyone.GET("/timetable", s.getTimetable)

	staff := v1.Group("", d.Gate.Require(auth.RoleStaff))
	staff.PUT("/settings/morning-lock", s.setMorningLock)
	staff.PUT("/settings/pin", s.changePIN)
	staff.POST("/classes/:id/students", s.addStudent)
	staff.DELETE("/classes/:id/students/:studentId", s.removeStudent)
	staff.GET("/classes/:id/qr.png", s.classQR)
	staff.GET("/attendance", s.listAttendance)
	staff.GET("/incidents", s.listIncidents)
	staff.POST("/incidents/:id/escalate", s.escalateIncident)
	staff.GET("/dashboard/coordinator", s.coordinatorDashboard)
	staff.GET("/dashboard/leadership", s.leadershipDashboard)
	staff.GET("/summaries/:day", s.getSummary)
	staff.POST("/summaries/:day", s.requestSummary)
	staff.GET("/reports/month", s.monthReport)
	staff.GET("/reports/students/:studentId", s.studentReport)
	staff.GET("/export/archive.csv", s.exportArchive)
	staff.GET("/export/backup.json", s.exportBackup)
	staff.PUT("/timetable", s.uploadTimetable)
	staff.POST("/admin/factory-reset", s.factoryReset)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *server) health(c *gin.Context) {
	status := http.StatusOK
	checks := map[string]bool{}
	if s.Health != nil {
		checks = s.Health(c.Request.Context())
	}
	for _, ok := range checks {
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}
