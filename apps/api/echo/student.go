package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/timetable"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/storage/fixtures"
)

type studentApi struct {
	conf       *core.Config
	svc        student.ServiceInterface
	usrSvc     user.ServiceInterface
	attendance attendance.ServiceInterface
	fixtures   *fixtures.Store
	clock      core.Clock
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps, conf *core.Config) {
	api := studentApi{
		conf:       conf,
		svc:        deps.StudentSvc,
		usrSvc:     auth.svc,
		attendance: deps.AttendanceSvc,
		fixtures:   deps.Fixtures,
		clock:      deps.Clock,
		validate:   deps.Validate,
	}

	sg := g.Group("/students", jwt)

	// the logged in student
	mg := sg.Group("/me", studentMiddleware())
	mg.GET("", api.me)
	mg.GET("/dashboard", api.dashboard)
	mg.PUT("/profile", api.updateProfile)

	// roster
	sg.GET("", api.query, facultyMiddleware())
	sg.GET("/:id", api.retrieve, facultyMiddleware())
}

// ctxStudent returns the student record of the logged in user, whose username is their enrollment number.
func (api *studentApi) ctxStudent(ctx echo.Context) (student.Student, user.User, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return student.Student{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	st, err := api.svc.GetByEnrollment(ctx.Request().Context(), usr.Username)
	if err != nil {
		return student.Student{}, usr, errors.Wrap(err, "finding student by enrollment number")
	}
	return st, usr, nil
}

func (api *studentApi) me(ctx echo.Context) error {
	st, _, err := api.ctxStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentResponse{Student: st, ProfileComplete: st.Profile.IsComplete()})
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	st, usr, err := api.ctxStudent(ctx)
	if err != nil {
		return err
	}

	day, err := api.attendance.StudentDay(ctx.Request().Context(), st.ID, "")
	if err != nil {
		return errors.Wrap(err, "computing attendance of the day")
	}

	now := api.clock.Now()
	return ctx.JSON(http.StatusOK, StudentDashboard{
		Greeting:        timetable.Greeting(now),
		Name:            usr.FirstName(),
		Student:         st,
		Today:           api.fixtures.Timetable().At(now, api.conf.Attendance.FreePeriodMinGap),
		Attendance:      day,
		ProfileComplete: st.Profile.IsComplete(),
	})
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	st, _, err := api.ctxStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err = api.svc.UpdateProfile(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, StudentResponse{Student: st, ProfileComplete: st.Profile.IsComplete()})
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := &student.QueryFilter{Search: ctx.QueryParam("search")}
	filter.Clean()

	students, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	st, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, st)
}

type (
	StudentResponse struct {
		student.Student
		ProfileComplete bool `json:"profile_complete"`
	}

	StudentDashboard struct {
		Greeting        string                `json:"greeting"`
		Name            string                `json:"name"`
		Student         student.Student       `json:"student"`
		Today           timetable.Today       `json:"today"`
		Attendance      attendance.StudentDay `json:"attendance"`
		ProfileComplete bool                  `json:"profile_complete"`
	}
)
