package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/export"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/timetable"
	"github.com/trezcool/classcue/core/user"
)

type facultyApi struct {
	conf       *core.Config
	usrSvc     user.ServiceInterface
	students   student.ServiceInterface
	attendance attendance.ServiceInterface
	recorder   *qrsession.Recorder
	mailSvc    core.EmailService
	clock      core.Clock
}

func registerFacultyAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps, conf *core.Config) {
	api := facultyApi{
		conf:       conf,
		usrSvc:     auth.svc,
		students:   deps.StudentSvc,
		attendance: deps.AttendanceSvc,
		recorder:   deps.Recorder,
		mailSvc:    deps.MailSvc,
		clock:      deps.Clock,
	}

	g.GET("/faculty/dashboard", api.dashboard, jwt, facultyMiddleware())

	ag := g.Group("/attendance", jwt, facultyMiddleware())
	ag.GET("/classes", api.classes)
	ag.GET("/classes/:id", api.class)
	ag.GET("/classes/:id/export", api.exportClass)
	ag.POST("/classes/:id/export/email", api.emailClass)
	ag.GET("/classes/:id/sessions", api.sessionHistory)
	ag.GET("/report", api.exportReport)
}

func (api *facultyApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	date, err := bindDate(ctx)
	if err != nil {
		return err
	}

	ov, err := api.attendance.Overview(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, FacultyDashboard{
		Greeting: timetable.Greeting(api.clock.Now()),
		Name:     usr.FirstName(),
		Overview: ov,
	})
}

func (api *facultyApi) classes(ctx echo.Context) error {
	date, err := bindDate(ctx)
	if err != nil {
		return err
	}
	day, err := api.attendance.Day(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, day)
}

func (api *facultyApi) class(ctx echo.Context) error {
	detail, err := api.attendance.Class(ctx.Request().Context(), ctx.Param("id"), attendance.ParseStatus(ctx.QueryParam("status")))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *facultyApi) classExport(ctx echo.Context, f export.Format) (export.File, attendance.ClassDetail, error) {
	detail, err := api.attendance.Class(ctx.Request().Context(), ctx.Param("id"), attendance.StatusAll)
	if err != nil {
		return export.File{}, attendance.ClassDetail{}, errors.Wrap(err, "finding class")
	}
	status := attendance.ParseStatus(ctx.QueryParam("status"))
	file, err := export.ClassAttendance(detail.Class, status, f, api.clock.Now())
	if err != nil {
		return export.File{}, attendance.ClassDetail{}, errors.Wrap(err, "exporting class attendance")
	}
	return file, detail, nil
}

func (api *facultyApi) exportClass(ctx echo.Context) error {
	f, err := export.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	file, _, err := api.classExport(ctx, f)
	if err != nil {
		return err
	}
	return attachment(ctx, file)
}

// emailClass mails the PDF export of a class to the logged in user.
func (api *facultyApi) emailClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.Email == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: "your account has no email address"})
	}

	file, detail, err := api.classExport(ctx, export.PDF)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("%s attendance (%s)", detail.Subject, detail.Date),
		TemplateName: "attendance_report",
		TemplateData: map[string]interface{}{
			"Subject":    detail.Subject,
			"Date":       detail.Date,
			"Time":       detail.Time,
			"Room":       detail.Room,
			"Present":    detail.Stats.Present,
			"Absent":     detail.Stats.Absent,
			"Total":      detail.Stats.Total,
			"Percentage": detail.Stats.Percentage,
		},
		FrontendBaseURL: api.conf.FrontendBaseURL,
	}
	if err := msg.Attach(bytes.NewReader(file.Content), file.Name, file.ContentType); err != nil {
		return errors.Wrap(err, "attaching export")
	}
	api.mailSvc.SendMessages(msg)

	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The attendance report will arrive in your inbox shortly."})
}

func (api *facultyApi) exportReport(ctx echo.Context) error {
	f, err := export.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	date, err := bindDate(ctx)
	if err != nil {
		return err
	}

	students, err := api.students.Query(ctx.Request().Context(), nil)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	ov, err := api.attendance.Overview(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}

	file, err := export.StudentsReport(students, ov, f, api.clock.Now())
	if err != nil {
		return errors.Wrap(err, "exporting students report")
	}
	return attachment(ctx, file)
}

func (api *facultyApi) sessionHistory(ctx echo.Context) error {
	recs, err := api.recorder.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying session history")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func attachment(ctx echo.Context, file export.File) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return ctx.Blob(http.StatusOK, file.ContentType, file.Content)
}

type FacultyDashboard struct {
	Greeting string `json:"greeting"`
	Name     string `json:"name"`
	attendance.Overview
}
